package value

import "testing"

func TestValueStringCanonicalForms(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil(), "()"},
		{F64(1), "1"},
		{F64(1.5), "1.5"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Op(OpAdd), "+"},
		{Op(OpPrint), "print"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestObjectStringCanonicalForms(t *testing.T) {
	s := Obj(NewString("hello"))
	if got := s.String(); got != `"hello"` {
		t.Errorf("String() = %q, want %q", got, `"hello"`)
	}

	sym := Obj(NewSymbol("a"))
	if got := sym.String(); got != "<symbol a>" {
		t.Errorf("String() = %q, want %q", got, "<symbol a>")
	}

	cons := Obj(NewCons(F64(1), F64(2)))
	if got := cons.String(); got != "(1 . 2)" {
		t.Errorf("String() = %q, want %q", got, "(1 . 2)")
	}
}
