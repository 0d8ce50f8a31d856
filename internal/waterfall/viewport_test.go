package waterfall

import "testing"

func TestViewportState_Projection(t *testing.T) {
	v := ViewportState{Width: 800, Height: 600}

	p := v.Projection()
	if p.Left != 0 || p.Right != 800 {
		t.Errorf("Expected x bounds [0,800], got [%v,%v]", p.Left, p.Right)
	}
	if p.Top != 0 || p.Bottom != 600 {
		t.Errorf("Expected y bounds [0,600], got [%v,%v]", p.Top, p.Bottom)
	}
}

func TestViewportState_Resize(t *testing.T) {
	v := ViewportState{Width: 800, Height: 600}

	testCases := []struct {
		name          string
		width, height int
		expected      ViewportState
	}{
		{"grow", 1600, 900, ViewportState{Width: 1600, Height: 900}},
		{"shrink", 640, 480, ViewportState{Width: 640, Height: 480}},
		{"zero width ignored", 0, 900, ViewportState{Width: 800, Height: 900}},
		{"zero height ignored", 1600, 0, ViewportState{Width: 1600, Height: 600}},
		{"negative ignored", -10, -10, ViewportState{Width: 800, Height: 600}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.Resize(tc.width, tc.height); got != tc.expected {
				t.Errorf("Resize(%d, %d) = %+v, expected %+v", tc.width, tc.height, got, tc.expected)
			}
		})
	}
}
