package extractor

// reserved lists words that can appear in the shape `word word (` or
// `word (` without being a module instantiation. The instance scanner rejects
// a match when either identifier is in this set. The list is maintained by
// hand; every construct with that shape needs an entry here.
var reserved = map[string]bool{}

func init() {
	for _, w := range []string{
		// procedural blocks and control flow
		"always", "always_ff", "always_comb", "always_latch", "initial", "final",
		"assign", "deassign", "force", "release",
		"if", "else", "case", "casez", "casex", "default", "endcase",
		"unique", "unique0", "priority",
		"for", "foreach", "while", "repeat", "forever", "do", "return",
		"break", "continue", "wait", "wait_order", "disable",
		"fork", "join", "join_any", "join_none",
		"begin", "end", "generate", "endgenerate", "genvar",
		"posedge", "negedge", "edge", "iff",

		// declarations
		"function", "endfunction", "task", "endtask", "automatic", "static",
		"class", "endclass", "extends", "implements", "virtual", "extern",
		"pure", "local", "protected", "const", "new", "super", "this", "void",
		"covergroup", "endgroup", "coverpoint", "cross", "bins",
		"assert", "assume", "cover", "restrict", "expect",
		"property", "endproperty", "sequence", "endsequence",
		"logic", "wire", "reg", "var", "tri", "wand", "wor", "supply0", "supply1",
		"bit", "byte", "shortint", "int", "longint", "integer", "time",
		"real", "shortreal", "realtime", "string", "chandle", "event",
		"signed", "unsigned", "packed",
		"input", "output", "inout", "ref",
		"parameter", "localparam", "defparam", "specparam",
		"typedef", "struct", "union", "enum",
		"import", "export",
		"module", "endmodule", "macromodule", "primitive", "endprimitive",
		"interface", "endinterface", "modport",
		"package", "endpackage", "program", "endprogram",
		"checker", "endchecker", "clocking", "endclocking",
		"specify", "endspecify", "table", "endtable",

		// preprocessor words that survive when the backtick is stripped
		"ifdef", "ifndef", "endif", "elsif", "define", "undef", "include",
		"timescale", "default_nettype",

		// configuration
		"config", "endconfig", "library", "design", "instance", "cell", "liblist", "use",

		// built-in gate primitives
		"and", "or", "not", "nand", "nor", "xor", "xnor",
		"buf", "bufif0", "bufif1", "notif0", "notif1",
	} {
		reserved[w] = true
	}
}

// IsReserved reports whether word can never be a module type or instance name
func IsReserved(word string) bool {
	return reserved[word]
}
