package handler

import (
	"bytes"
	"embed"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// view names
const (
	viewSuccess = "success"
	viewPending = "pending"
	viewCancel  = "cancel"
)

// Views renders payment pages. HTMX requests get the content fragment only.
type Views struct {
	pages map[string]*template.Template
}

// NewViews parses embedded templates
func NewViews() (*Views, error) {
	v := &Views{pages: map[string]*template.Template{}}
	for _, name := range []string{viewSuccess, viewPending, viewCancel} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		v.pages[name] = t
	}
	return v, nil
}

// orderView is data of payment pages
type orderView struct {
	ID         int64
	Total      string
	Currency   string
	Status     string
	Provider   string
	Conflict   bool
	RefreshURL string
}

func newOrderView(o *models.Order) orderView {
	return orderView{
		ID:       o.ID,
		Total:    o.Total.StringFixed(2),
		Currency: o.Currency,
		Status:   o.Status.String(),
		Provider: o.PaymentProvider.String(),
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") != ""
}

func (v *Views) render(w http.ResponseWriter, r *http.Request, name string, data orderView) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}

	entry := "layout"
	if isHTMX(r) {
		entry = "content"
	}

	// render into buffer so template errors do not leave half a page
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}
