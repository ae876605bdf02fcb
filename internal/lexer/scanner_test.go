package lexer

import "testing"

func tokenTypes(src string) []TokenType {
	s := New(src)
	var got []TokenType
	for {
		t := s.Next()
		got = append(got, t.Type)
		if t.Type == TokEOF {
			break
		}
	}
	return got
}

func TestScannerPunctuation(t *testing.T) {
	got := tokenTypes("(){}[]")
	want := []TokenType{TokLParen, TokRParen, TokLBrace, TokRBrace, TokLBracket, TokRBracket, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, tt := range want {
		if got[i] != tt {
			t.Fatalf("token %d: got %v want %v", i, got[i], tt)
		}
	}
}

func TestScannerNumberAndIdent(t *testing.T) {
	s := New("x = 10")
	tok := s.Next()
	if tok.Type != TokIdent || tok.Lexeme != "x" {
		t.Fatalf("expected ident x, got %+v", tok)
	}
	s.Next() // =
	tok = s.Next()
	if tok.Type != TokNumber || tok.Lexeme != "10" {
		t.Fatalf("expected number 10, got %+v", tok)
	}
}

func TestScannerKeywords(t *testing.T) {
	got := tokenTypes("true false nil")
	want := []TokenType{TokTrue, TokFalse, TokNil, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, tt := range want {
		if got[i] != tt {
			t.Fatalf("token %d: got %v want %v", i, got[i], tt)
		}
	}
}

func TestScannerUnterminatedString(t *testing.T) {
	s := New(`"hello`)
	tok := s.Next()
	if tok.Type != TokError {
		t.Fatalf("expected error token for unterminated string, got %+v", tok)
	}
}

func TestScannerStringLiteral(t *testing.T) {
	s := New(`"hello world"`)
	tok := s.Next()
	if tok.Type != TokString || tok.Lexeme != "hello world" {
		t.Fatalf("expected string literal, got %+v", tok)
	}
}

func TestScannerEscapeSequences(t *testing.T) {
	s := New(`"a\n\t\x41B"`)
	tok := s.Next()
	if tok.Type != TokString || tok.Lexeme != "a\n\tAB" {
		t.Fatalf("escape decoding wrong: %q", tok.Lexeme)
	}
}

func TestScannerInterpolationSplitsSegments(t *testing.T) {
	got := tokenTypes(`"pre${x}post"`)
	want := []TokenType{TokInterpString, TokIdent, TokString, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, tt := range want {
		if got[i] != tt {
			t.Fatalf("token %d: got %v want %v", i, got[i], tt)
		}
	}
}

func TestScannerNestedInterpolationDepthBound(t *testing.T) {
	src := ""
	for i := 0; i < maxInterpDepth+1; i++ {
		src += `"${`
	}
	s := New(src)
	sawError := false
	for {
		tok := s.Next()
		if tok.Type == TokError {
			sawError = true
			break
		}
		if tok.Type == TokEOF {
			break
		}
	}
	if !sawError {
		t.Fatal("expected over-deep interpolation to fail the scan")
	}
}

func TestScannerNumberPrefixes(t *testing.T) {
	for _, src := range []string{"0b1010", "0c17", "0xfe", "3.25", "1e9"} {
		s := New(src)
		tok := s.Next()
		if tok.Type != TokNumber || tok.Lexeme != src {
			t.Fatalf("%s scanned as %+v", src, tok)
		}
	}
}

func TestScannerNestedBlockComments(t *testing.T) {
	got := tokenTypes("1 /* outer /* inner */ still out */ 2")
	want := []TokenType{TokNumber, TokNumber, TokEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestScannerCloneIsIndependent(t *testing.T) {
	s := New("a b c")
	s.Next() // a
	c := s.Clone()
	if tok := c.Next(); tok.Lexeme != "b" {
		t.Fatalf("clone should continue at b, got %q", tok.Lexeme)
	}
	c.Next() // c
	if tok := s.Next(); tok.Lexeme != "b" {
		t.Fatalf("original should be unaffected by the clone, got %q", tok.Lexeme)
	}
}

func TestScannerCompoundOperators(t *testing.T) {
	got := tokenTypes("+= **= <<= >>= .. ** ++ -- // //=")
	want := []TokenType{
		TokPlusEq, TokStarStarEq, TokShlEq, TokShrEq,
		TokDotDot, TokStarStar, TokIncr, TokDecr,
		TokSlashSlash, TokSlashSlashEq, TokEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, tt := range want {
		if got[i] != tt {
			t.Fatalf("token %d: got %v want %v", i, got[i], tt)
		}
	}
}
