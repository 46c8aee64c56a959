package filtergraph

import (
	"strings"
	"testing"
)

func TestNodeString(t *testing.T) {
	n := Node{
		Inputs:  []Stream{"v1", "v2"},
		Filter:  "xfade",
		Args:    "transition=fade:duration=1:offset=9",
		Outputs: []Stream{"vx1"},
	}
	want := "[v1][v2]xfade=transition=fade:duration=1:offset=9[vx1]"
	if got := n.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNodeString_NoArgs(t *testing.T) {
	n := Node{Inputs: []Stream{"v1"}, Filter: "null", Outputs: []Stream{"vout"}}
	if got := n.String(); got != "[v1]null[vout]" {
		t.Errorf("String() = %q", got)
	}
}

func TestGraphString_JoinsWithSemicolons(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "scale", "1280:720", "v1")
	g.Chain("v1", "setsar", "1", "vout")

	got := g.String()
	if strings.Count(got, ";") != 1 {
		t.Fatalf("expected one separator in %q", got)
	}
	if !strings.HasPrefix(got, "[0:v]scale=1280:720[v1];") {
		t.Errorf("unexpected serialization %q", got)
	}
}

func TestStreamIsSource(t *testing.T) {
	cases := []struct {
		label Stream
		want  bool
	}{
		{"0:v", true},
		{"12:a", true},
		{"v3", false},
		{"0:s", false},
		{"", false},
	}
	for _, c := range cases {
		if got := c.label.IsSource(); got != c.want {
			t.Errorf("IsSource(%q) = %v, want %v", c.label, got, c.want)
		}
	}
}

func TestValidate_AcceptsLinearChain(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "scale", "1280:720", "v1")
	g.Chain("v1", "fps", "30", "vout")

	if err := g.Validate("vout"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RejectsDuplicateProducer(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "scale", "1280:720", "v1")
	g.Chain("1:v", "scale", "1280:720", "v1")

	if err := g.Validate("v1"); err == nil {
		t.Fatal("expected duplicate-producer error")
	}
}

func TestValidate_RejectsDanglingInput(t *testing.T) {
	g := &Graph{}
	g.Chain("ghost", "fps", "30", "vout")

	if err := g.Validate("vout"); err == nil {
		t.Fatal("expected dangling-input error")
	}
}

func TestValidate_RejectsDoubleConsume(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "scale", "1280:720", "v1")
	g.Chain("v1", "fps", "30", "va")
	g.Chain("v1", "fps", "60", "vb")

	if err := g.Validate("va", "vb"); err == nil {
		t.Fatal("expected double-consume error")
	}
}

func TestValidate_RejectsUnconsumedIntermediate(t *testing.T) {
	g := &Graph{}
	g.Chain("0:v", "scale", "1280:720", "v1")
	g.Chain("0:a", "aresample", "44100", "aout")

	if err := g.Validate("aout"); err == nil {
		t.Fatal("expected unconsumed-intermediate error for v1")
	}
}
