/*

Process of compilation

Program Text ->
	lex ->
Tokens ->
	parse ->
Concrete Syntax Tree (ast) ->
	analyze ->
Quadruples and Constant Table (ir) ->
	run ->
Output Log (vm)

Addresses come from a Layout (mem): typed ranges per segment.
Symbols (symtab) map names to addresses, frame-relative inside functions.

*/
package compiler
