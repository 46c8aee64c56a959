package filtergraph

import (
	"strings"
	"testing"
)

func indexOf(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}

func TestEncodeArgs_FilterPlan(t *testing.T) {
	out := testOutput()
	p, err := Build([]SourceClip{vclip("/tmp/a.mp4", 10), vclip("/tmp/b.mp4", 8)}, &Enhancements{FadeIn: 1}, out)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	args, err := EncodeArgs(p, out, "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("EncodeArgs: %v", err)
	}

	fc := indexOf(args, "-filter_complex")
	if fc < 0 || fc+1 >= len(args) {
		t.Fatal("missing -filter_complex")
	}
	if args[fc+1] != p.Graph.String() {
		t.Error("filter_complex should carry the serialized graph")
	}
	if indexOf(args, "[vout]") < 0 || indexOf(args, "[aout]") < 0 {
		t.Error("final labels should be mapped")
	}
	for _, want := range []string{"libx264", "-crf", "23", "-preset", "medium", "aac", "-b:a", "128k", "-ar", "44100", "-movflags", "+faststart"} {
		if indexOf(args, want) < 0 {
			t.Errorf("missing %q in %v", want, args)
		}
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Errorf("output path should be last, got %q", args[len(args)-1])
	}
}

func TestEncodeArgs_ImageInputsLooped(t *testing.T) {
	img := SourceClip{Path: "/tmp/slide.png", IsImage: true, DisplayDuration: 4}
	out := testOutput()
	p, err := Build([]SourceClip{img}, nil, out)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	args, err := EncodeArgs(p, out, "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("EncodeArgs: %v", err)
	}
	loop := indexOf(args, "-loop")
	if loop < 0 {
		t.Fatalf("image input should loop: %v", args)
	}
	if args[loop+1] != "1" || args[loop+2] != "-t" || args[loop+3] != "4" {
		t.Errorf("loop window wrong: %v", args[loop:loop+4])
	}
	if args[loop+4] != "-i" || args[loop+5] != "/tmp/slide.png" {
		t.Errorf("loop flags must precede the input: %v", args[loop:loop+6])
	}
}

func TestEncodeArgs_RejectsCopyPlan(t *testing.T) {
	p, err := Build([]SourceClip{vclip("/tmp/a.mp4", 10), vclip("/tmp/b.mp4", 8)}, nil, testOutput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := EncodeArgs(p, testOutput(), "/tmp/out.mp4"); err == nil {
		t.Fatal("copy plans have no encode args")
	}
}

func TestCopyArgs(t *testing.T) {
	args := CopyArgs("/tmp/list.txt", "/tmp/out.mp4")
	for _, want := range []string{"-f", "concat", "-safe", "0", "-i", "/tmp/list.txt", "-c", "copy", "+faststart"} {
		if indexOf(args, want) < 0 {
			t.Errorf("missing %q in %v", want, args)
		}
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Errorf("output path should be last, got %q", args[len(args)-1])
	}
}

func TestConcatListContent(t *testing.T) {
	c := vclip("/tmp/it's.mp4", 30)
	c.TrimStart = 5
	c.TrimEnd = 25

	p, err := Build([]SourceClip{c, vclip("/tmp/b.mp4", 8)}, nil, testOutput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	content := ConcatListContent(p)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if lines[0] != "ffconcat version 1.0" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(content, `file '/tmp/it'\''s.mp4'`) {
		t.Errorf("apostrophes in paths must be escaped:\n%s", content)
	}
	if !strings.Contains(content, "inpoint 5\n") || !strings.Contains(content, "outpoint 25\n") {
		t.Errorf("trim directives missing:\n%s", content)
	}
}

func TestThumbnailArgs(t *testing.T) {
	args := ThumbnailArgs("/tmp/out.mp4", "/tmp/poster.jpg", 1.5)
	if indexOf(args, "-ss") < 0 || indexOf(args, "-frames:v") < 0 {
		t.Errorf("thumbnail args incomplete: %v", args)
	}
	if args[len(args)-1] != "/tmp/poster.jpg" {
		t.Errorf("poster path should be last, got %q", args[len(args)-1])
	}
}
