package extract

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "trims", in: "  \n hello \n ", want: "hello"},
		{name: "collapses spaces", in: "a  \t b", want: "a b"},
		{name: "single blank line kept", in: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "blank lines with spaces", in: "a\n   \n \t\nb", want: "a\n\nb"},
		{name: "crlf", in: "a\r\nb\rc", want: "a\nb\nc"},
		{name: "control characters", in: "a\x00b\x07c\x1bd\x7fe\u0085f", want: "abcdef"},
		{name: "form feed and vertical tab", in: "a\x0bb\x0cc", want: "abc"},
		{name: "unicode preserved", in: "Zugriff über VPN", want: "Zugriff über VPN"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
