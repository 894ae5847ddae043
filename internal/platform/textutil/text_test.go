package textutil

import (
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	t.Run("strips markup and collapses whitespace", func(t *testing.T) {
		got := Clean("  <b>Ahmed</b>\t  Ali <script>alert(1)</script> ")
		if got != "Ahmed Ali" {
			t.Fatalf("unexpected cleaned value %q", got)
		}
	})

	t.Run("keeps entities readable", func(t *testing.T) {
		if got := Clean("Tom & Jerry"); got != "Tom & Jerry" {
			t.Fatalf("expected ampersand preserved, got %q", got)
		}
	})

	t.Run("blank input", func(t *testing.T) {
		if Clean("   ") != "" {
			t.Fatalf("expected empty string")
		}
	})
}

func TestCleanAll(t *testing.T) {
	got := CleanAll([]string{" 12 Tahrir St ", "", "<i></i>", "Floor 3"})
	want := []string{"12 Tahrir St", "Floor 3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v got %#v", want, got)
	}
	if CleanAll(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+20 (101) 234-5678"); got != "201012345678" {
		t.Fatalf("unexpected digits %q", got)
	}
}
