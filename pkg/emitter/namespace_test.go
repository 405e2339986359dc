package emitter

import "testing"

func TestNamespaceMangleTopLevel(t *testing.T) {
	var ns Namespace
	if got := ns.Mangle("debug_node"); got != "debug_node" {
		t.Fatalf("top-level mangle = %q, want %q", got, "debug_node")
	}
}

func TestNamespaceMangleNested(t *testing.T) {
	ns := Namespace{"timer_node"}
	if got := ns.Mangle("value"); got != "timer_node_value" {
		t.Fatalf("nested mangle = %q, want %q", got, "timer_node_value")
	}
	deeper := ns.Child("value")
	if got := deeper.Mangle("inner"); got != "timer_node_value_inner" {
		t.Fatalf("deep mangle = %q, want %q", got, "timer_node_value_inner")
	}
}

func TestNamespaceJSONPath(t *testing.T) {
	ns := Namespace{"timer_node"}
	if got := ns.JSONPath("value"); got != `["timer_node"]["value"]` {
		t.Fatalf("json path = %q", got)
	}
}
