package web

// ModelState collects validation messages for a form: per field and for
// the form as a whole.
type ModelState struct {
	Form   []string
	Fields map[string][]string
}

func NewModelState() *ModelState {
	return &ModelState{Fields: map[string][]string{}}
}

// AddError records msg against field. An empty field means the whole form.
func (m *ModelState) AddError(field, msg string) {
	if field == "" {
		m.Form = append(m.Form, msg)
		return
	}
	if m.Fields == nil {
		m.Fields = map[string][]string{}
	}
	m.Fields[field] = append(m.Fields[field], msg)
}

func (m *ModelState) IsValid() bool {
	return m == nil || (len(m.Form) == 0 && len(m.Fields) == 0)
}

// For returns the messages recorded for field.
func (m *ModelState) For(field string) []string {
	if m == nil {
		return nil
	}
	return m.Fields[field]
}
