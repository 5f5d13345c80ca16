package storage

import "testing"

func TestPlanObjectName(t *testing.T) {
	cases := []struct {
		chat, id, want string
	}{
		{"42", "abc", "plans/42/abc.json"},
		{"-100200", "7f3e", "plans/-100200/7f3e.json"},
		{"../etc", "x/y", "plans/.._etc/x_y.json"},
	}
	for _, c := range cases {
		if got := PlanObjectName(c.chat, c.id); got != c.want {
			t.Errorf("PlanObjectName(%q, %q) = %q, want %q", c.chat, c.id, got, c.want)
		}
	}
}
