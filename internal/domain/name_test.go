package domain

import "testing"

func TestParsePackageName(t *testing.T) {
	ok := []string{"com.whatsapp", "com.aritraroy.rxmagneto", "  org.x_y.z1  ", "single"}
	for _, s := range ok {
		if _, good := ParsePackageName(s); !good {
			t.Fatalf("期望合法：%q", s)
		}
	}

	bad := []string{"", "   ", "1com.x", "com..x", "com.x.", "com x", "com.x&hl=en", "com/x"}
	for _, s := range bad {
		if p, good := ParsePackageName(s); good {
			t.Fatalf("期望非法：%q，实际解析为 %q", s, p)
		}
	}
}

func TestParsePackageName_TrimsOnly(t *testing.T) {
	p, ok := ParsePackageName(" com.Example.App ")
	if !ok {
		t.Fatalf("期望合法")
	}
	if p != "com.Example.App" {
		t.Fatalf("期望保留大小写，实际=%q", p)
	}
}
