package tp

// cube is the semantic cube: cube[left][op][right] is the result type.
// The zero value is Error, so any combination not filled in by init is disallowed.
var cube [numTypes][numCubeOps][numTypes]Type

func init() {
	arith := []Op{Add, Sub, Mul, Div}
	rel := []Op{Gt, Lt, Ge, Le, Eq, Ne}

	for _, op := range arith {
		cube[Int][op][Int] = Int
		cube[Int][op][Float] = Float
		cube[Float][op][Int] = Float
		cube[Float][op][Float] = Float
	}

	for _, op := range rel {
		for _, l := range []Type{Int, Float} {
			for _, r := range []Type{Int, Float} {
				cube[l][op][r] = Int
			}
		}
	}

	cube[String][Add][String] = String
	cube[String][Eq][String] = Int
	cube[String][Ne][String] = Int

	// Narrowing int = float is left out on purpose.
	cube[Int][Assign][Int] = Int
	cube[Float][Assign][Int] = Float
	cube[Float][Assign][Float] = Float
	cube[String][Assign][String] = String
}

// Result looks up the type of l op r.
// For Assign, l is the target type and r the value type.
// Unknown types or VM-only operators yield Error.
func Result(l Type, op Op, r Type) Type {
	if l < 0 || l >= numTypes || r < 0 || r >= numTypes || op < 0 || op >= numCubeOps {
		return Error
	}

	return cube[l][op][r]
}

// Assignable reports whether a value of type v may be stored in a cell of type t.
func Assignable(t, v Type) bool {
	return Result(t, Assign, v) != Error
}
