package session

import (
	"math"
)

// NoContentMessage is shown in place of the payload when a selection has no
// images.
const NoContentMessage = "Sorry, there is no image for that selection."

// View is the render-ready state of a session. Field order is the JSON
// order seen by clients.
type View struct {
	Title      string          `json:"title,omitempty"`
	Dimensions []DimensionView `json:"dimensions"`
	Payload    *PayloadView    `json:"payload,omitempty"`
	Empty      bool            `json:"empty"`
	Message    string          `json:"message,omitempty"`
	Animation  *AnimationView  `json:"animation,omitempty"`
	Query      string          `json:"query"`
	URL        string          `json:"url"`
}

type DimensionView struct {
	Name     string       `json:"name"`
	Selected string       `json:"selected"`
	Index    int          `json:"index"`
	Options  []OptionView `json:"options"`
}

type OptionView struct {
	Value    string `json:"value"`
	Index    int    `json:"index"`
	Selected bool   `json:"selected,omitempty"`
}

// PayloadView lays the references out on a near-square grid.
type PayloadView struct {
	Refs    []string `json:"refs"`
	List    bool     `json:"list"`
	Columns int      `json:"columns"`
	Rows    int      `json:"rows"`
}

type AnimationView struct {
	Dimension int    `json:"dimension"`
	Name      string `json:"name"`
	Frames    []int  `json:"frames"`
	Position  int    `json:"position"`
}

// Grid returns the column and row count for n images: up to three sit on
// one row, more fill a square of side ceil(sqrt(n)).
func Grid(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = n
	if n > 3 {
		cols = int(math.Ceil(math.Sqrt(float64(n))))
	}
	rows = (n + cols - 1) / cols
	return cols, rows
}

// View snapshots the current state.
func (s *Session) View() View {
	v := View{
		Title:      s.page.Title,
		Dimensions: make([]DimensionView, s.keys.Depth()),
		Query:      s.Query(),
		URL:        s.URL(""),
	}

	for d := range v.Dimensions {
		dv := DimensionView{Index: s.sel[d], Options: []OptionView{}}
		if d < len(s.page.Dimensions) {
			dv.Name = s.page.Dimensions[d].Name
		}
		if d < len(s.result.Selected) {
			dv.Selected = s.result.Selected[d]
		}
		if d < len(s.result.Options) {
			for _, opt := range s.result.Options[d] {
				dv.Options = append(dv.Options, OptionView{
					Value:    opt,
					Index:    s.keys.Index(d, opt),
					Selected: opt == dv.Selected,
				})
			}
		}
		v.Dimensions[d] = dv
	}

	if s.result.Empty() {
		v.Empty = true
		v.Message = NoContentMessage
	} else {
		p := s.result.Payload
		cols, rows := Grid(len(p.Refs))
		v.Payload = &PayloadView{Refs: p.Refs, List: p.List, Columns: cols, Rows: rows}
	}

	if s.anim != nil {
		frames := s.anim.Options
		if frames == nil {
			frames = []int{}
		}
		v.Animation = &AnimationView{
			Dimension: s.anim.Dimension,
			Name:      s.page.Dimensions[s.anim.Dimension].Name,
			Frames:    frames,
			Position:  s.anim.Position(s.sel),
		}
	}
	return v
}
