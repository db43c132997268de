// internal/dispatch/selection.go
package dispatch

import "polychat/internal/models"

// Choice is one checkbox in the model selector
type Choice struct {
	Model   models.Model
	Checked bool
}

// Selection is the ordered set of toggleable models. All models start checked.
type Selection struct {
	choices []Choice
}

func NewSelection(catalog *models.Catalog) Selection {
	all := catalog.All()
	choices := make([]Choice, len(all))
	for i, m := range all {
		choices[i] = Choice{Model: m, Checked: true}
	}
	return Selection{choices: choices}
}

// Choices returns a copy of the selector entries in catalog order
func (s Selection) Choices() []Choice {
	out := make([]Choice, len(s.choices))
	copy(out, s.choices)
	return out
}

// Selected returns the checked models in catalog order
func (s Selection) Selected() []models.Model {
	var out []models.Model
	for _, c := range s.choices {
		if c.Checked {
			out = append(out, c.Model)
		}
	}
	return out
}

// Set returns a copy with the model's checkbox set to checked
func (s Selection) Set(modelID string, checked bool) (Selection, bool) {
	for i, c := range s.choices {
		if c.Model.ID == modelID {
			next := s.Choices()
			next[i].Checked = checked
			return Selection{choices: next}, true
		}
	}
	return s, false
}

// Toggle flips one model's checkbox
func (s Selection) Toggle(modelID string) (Selection, bool) {
	for _, c := range s.choices {
		if c.Model.ID == modelID {
			return s.Set(modelID, !c.Checked)
		}
	}
	return s, false
}
