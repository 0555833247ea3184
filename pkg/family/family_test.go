package family

import (
	"reflect"
	"testing"
)

func TestDefaultTableClassify(t *testing.T) {
	tbl := DefaultTable()

	cases := []struct {
		path string
		want []Family
	}{
		{"drivers/foo.c", []Family{C}},
		{"include/foo.h", []Family{C}},
		{"drivers/Kconfig", []Family{Kconfig}},
		{"drivers/Kconfig.debug", []Family{Kconfig}},
		{"arch/arm/boot/dts/foo.dts", []Family{DeviceTree}},
		{"drivers/Makefile", []Family{Makefile}},
		{"README.md", []Family{Other}},
	}
	for _, c := range cases {
		got := tbl.Classify(c.path)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestClassifyOverlappingRules(t *testing.T) {
	tbl := Table{
		Rules: []Rule{
			{Pattern: ".h", Family: C},
			{Pattern: "Kconfig*", Family: Kconfig},
			{Pattern: ".h", Family: Kconfig},
		},
		DefaultFamily: Other,
	}
	got := tbl.Classify("foo.h")
	want := []Family{C, Kconfig}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify with overlapping rules = %v, want %v", got, want)
	}
}
