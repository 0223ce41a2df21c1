package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/closestbody/internal/analysis"
)

func TestSubjectTitle(t *testing.T) {
	tests := []struct {
		name string
		res  analysis.Result
		want string
	}{
		{name: "empty frame", res: analysis.Result{}, want: "Subject: none"},
		{name: "nobody engaged", res: analysis.Result{PersonCount: 2}, want: "Subject: none"},
		{name: "engaged", res: analysis.Result{Engaged: true, SelectedIndex: 1, PersonCount: 3}, want: "Subject: person 1 of 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectTitle(tt.res))
		})
	}
}

func TestToggleTitle(t *testing.T) {
	assert.Equal(t, "● Enabled", ToggleTitle(true))
	assert.Equal(t, "○ Disabled", ToggleTitle(false))
}

func TestTray_StateWithoutMenu(t *testing.T) {
	tr := New(false)
	assert.False(t, tr.IsEnabled())
	assert.Equal(t, "Subject: none", tr.Subject())

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })
	tr.handleToggle()
	tr.handleToggle()
	assert.Equal(t, []bool{true, false}, got)

	tr.SetResult(analysis.Result{Engaged: true, SelectedIndex: 0, PersonCount: 1})
	assert.Equal(t, "Subject: person 0 of 1", tr.Subject())

	called := false
	tr.OnSettings(func() { called = true })
	tr.handleSettings()
	assert.True(t, called)
}
