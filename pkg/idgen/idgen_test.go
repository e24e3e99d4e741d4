package idgen

import (
	"strings"
	"testing"
)

func TestNextUniqueWithPrefix(t *testing.T) {
	gen, err := New(1)
	if err != nil {
		t.Fatalf("创建生成器失败: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		no := gen.Next(PrefixRecharge)
		if !strings.HasPrefix(no, PrefixRecharge) {
			t.Fatalf("单号应带前缀: %s", no)
		}
		if seen[no] {
			t.Fatalf("单号重复: %s", no)
		}
		seen[no] = true
	}
}

func TestNewRejectsInvalidNode(t *testing.T) {
	if _, err := New(1024); err == nil {
		t.Errorf("越界节点ID应报错")
	}
}
