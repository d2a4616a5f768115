package tables

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  BEAM   LISTING ", "BEAM LISTING"},
		{"Truss\t Length", "Truss Length"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleTokenScore(t *testing.T) {
	tests := []struct {
		name        string
		actual      string
		wantMatched int
	}{
		{"full", "CW JOIST SCHEDULE", 3},
		{"lower case", "cw joist schedule", 3},
		{"prefix tokens", "CWX JOISTS SCHEDULES 260MM", 3},
		{"one missing", "JOIST SCHEDULE", 2},
		{"one garbled", "CW J0IST SCHEDULE", 2},
		{"two missing", "SCHEDULE", 1},
		{"unrelated", "BEAM LISTING", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, total := TitleTokenScore("CW JOIST SCHEDULE", tt.actual)
			if matched != tt.wantMatched {
				t.Errorf("matched = %d, want %d", matched, tt.wantMatched)
			}
			if total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
		})
	}
}

func TestFuzzyTitle(t *testing.T) {
	tests := []struct {
		actual string
		want   bool
	}{
		{"CW JOIST SCHEDULE", true},
		{"  cw   joist schedule ", true},
		{"CW SCHEDULE", true},
		{"CW JOIST", true},
		{"JOIST", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := FuzzyTitle("CW JOIST SCHEDULE", tt.actual); got != tt.want {
			t.Errorf("FuzzyTitle(%q) = %v, want %v", tt.actual, got, tt.want)
		}
	}

	if FuzzyTitle("SCHEDULE", "BEAM") {
		t.Error("single-token title with no match must be rejected")
	}
	if FuzzyTitle("JOISTS", "BEAMS") {
		t.Error(`FuzzyTitle("JOISTS", "BEAMS") = true, want false`)
	}
	if !FuzzyTitle("JOIST", "JOISTS") {
		t.Error(`FuzzyTitle("JOIST", "JOISTS") = false, want true`)
	}
}

func TestExactTitle(t *testing.T) {
	if !ExactTitle("BEAM LISTING", "  beam   listing") {
		t.Error("ExactTitle should ignore case and spacing")
	}
	if ExactTitle("BEAM LISTING", "BEAM LISTING 2") {
		t.Error("ExactTitle should reject extra words")
	}
}

func TestColumnKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Has Peno", "has peno"},
		{"P.Has Peno", "has peno"},
		{".Cut Webs", "cut webs"},
		{"Truss Length (mm)", "truss length"},
		{"No.", "no."},
		{"A.", "a."},
		{"NEC", "nec"},
	}

	for _, tt := range tests {
		if got := ColumnKey(tt.in); got != tt.want {
			t.Errorf("ColumnKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExactColumns(t *testing.T) {
	expected := []string{"ID", "Qty", "Length", "Beam"}

	tests := []struct {
		name    string
		headers []string
		want    bool
	}{
		{"same order", []string{"ID", "Qty", "Length", "Beam"}, true},
		{"shuffled and extra", []string{"Notes", "beam", "LENGTH", "qty", "id"}, true},
		{"missing one", []string{"ID", "Qty", "Length", "Notes"}, false},
		{"too few", []string{"ID", "Qty", "Length"}, false},
		{"duplicate does not cover another", []string{"ID", "ID", "Length", "Beam"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExactColumns(expected, tt.headers); got != tt.want {
				t.Errorf("ExactColumns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuzzyColumns(t *testing.T) {
	expected := []string{"ID", "Has Peno", "Truss Length"}

	tests := []struct {
		name    string
		headers []string
		want    bool
	}{
		{"plain", []string{"ID", "Has Peno", "Truss Length"}, true},
		{"prefixed and suffixed", []string{"ID", "P.Has Peno", "Truss Length (mm)"}, true},
		{"missing", []string{"ID", "Cut Webs", "Truss Length"}, false},
		{"too few", []string{"ID", "Has Peno"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FuzzyColumns(expected, tt.headers); got != tt.want {
				t.Errorf("FuzzyColumns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumnCoverage_CountsEachExpectedOnce(t *testing.T) {
	// "Truss" prefixes two headers but only covers one expected column.
	got := ColumnCoverage(
		[]string{"truss", "type"},
		[]string{"truss length", "truss grouping pack", "notes"},
		func(e, h string) bool { return len(h) >= len(e) && h[:len(e)] == e },
	)
	if got != 1 {
		t.Errorf("ColumnCoverage() = %d, want 1", got)
	}
}

func TestResolveField(t *testing.T) {
	headers := []string{"ID", "No", "Truss Length", "NEC", "Quantity"}

	tests := []struct {
		name    string
		aliases []string
		want    int
		ok      bool
	}{
		{"exact", []string{"id"}, 0, true},
		{"prefix", []string{"truss"}, 2, true},
		{"first header wins over alias order", []string{"quantity", "no"}, 1, true},
		{"case insensitive", []string{"NEC"}, 3, true},
		{"unresolved", []string{"std"}, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveField(tt.aliases, headers)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResolveField() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}
