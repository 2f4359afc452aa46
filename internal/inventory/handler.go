package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-mill/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-mill/internal/shared"
	"github.com/odyssey-erp/odyssey-mill/internal/view"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrf        *shared.CSRFManager
	requireUser func(http.Handler) http.Handler
}

// NewHandler constructs inventory handler. requireUser guards every route.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, requireUser func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, requireUser: requireUser}
}

// MountRoutes registers the HTML inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.requireUser != nil {
			r.Use(h.requireUser)
		}
		r.Get("/", h.showDashboard)

		r.Get("/vouchers", h.showVouchers)
		r.Post("/vouchers", h.createVoucher)
		r.Get("/vouchers/{id}/edit", h.editVoucher)
		r.Post("/vouchers/{id}", h.updateVoucher)
		r.Post("/vouchers/{id}/delete", h.deleteVoucher)

		r.Get("/processes", h.showProcesses)
		r.Post("/processes", h.createProcess)
		r.Get("/processes/{id}/edit", h.editProcess)
		r.Post("/processes/{id}", h.updateProcess)
		r.Post("/processes/{id}/delete", h.deleteProcess)

		r.Get("/outputs", h.showOutputs)
		r.Post("/outputs", h.createOutput)
		r.Get("/outputs/{id}/edit", h.editOutput)
		r.Post("/outputs/{id}", h.updateOutput)
		r.Post("/outputs/{id}/delete", h.deleteOutput)

		r.Get("/sales", h.showSales)
		r.Post("/sales", h.createSale)
		r.Get("/sales/{id}/edit", h.editSale)
		r.Post("/sales/{id}", h.updateSale)
		r.Post("/sales/{id}/delete", h.deleteSale)

		r.Get("/ledger", h.showLedger)
		r.Get("/ledger.xlsx", h.exportLedger)
		r.Get("/stock-card", h.showStockCard)
	})
}

type pageData struct {
	Records      any
	Form         any
	EditID       string
	SubmissionID string
	Errors       map[string]string
	Filter       filterForm
	Options      any
}

type filterForm struct {
	Name string
	From string
	To   string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data pageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	if data.Errors == nil {
		data.Errors = map[string]string{}
	}
	if data.EditID == "" && data.SubmissionID == "" {
		data.SubmissionID = uuid.NewString()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Username:    sess.Username(),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render inventory page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// settle flashes the outcome and redirects, or reports why the mutation failed.
func (h *Handler) settle(w http.ResponseWriter, r *http.Request, action string, out Outcome, err error, success, redirect string, rerender func(map[string]string, int)) {
	sess := shared.SessionFromContext(r.Context())
	if err != nil {
		status := httpx.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("inventory mutation failed", slog.String("action", action), slog.Any("error", err))
		} else {
			h.logger.Info("inventory mutation rejected", slog.String("action", action), slog.Any("error", err))
		}
		res := ResultFromError(err)
		errs := map[string]string{"general": res.Message}
		for k, v := range res.Fields {
			errs[k] = v
		}
		if rerender == nil {
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "danger", Message: res.Message})
			}
			http.Redirect(w, r, redirect, http.StatusSeeOther)
			return
		}
		rerender(errs, status)
		return
	}
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: success})
		if len(out.Warnings) > 0 {
			sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: strings.Join(out.Warnings, "; ")})
		}
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	snap, err := h.service.Snapshot(r.Context(), owner)
	data := pageData{}
	if err != nil {
		h.logger.Error("load snapshot", slog.Any("error", err))
		data.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
	}
	data.Records = snap
	h.render(w, r, "pages/inventory/dashboard.html", "Ringkasan Stok", data, http.StatusOK)
}

func (h *Handler) showLedger(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	filter, form, errs := parseFilter(r)
	data := pageData{Filter: form, Errors: errs}
	if len(errs) == 0 {
		ledger, err := h.service.ProductLedger(r.Context(), owner, filter)
		if err != nil {
			h.logger.Error("load ledger", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
		data.Records = ledger
	}
	goods, err := h.service.FinishedGoods(r.Context(), owner)
	if err != nil {
		h.logger.Warn("load finished goods", slog.Any("error", err))
	}
	data.Options = goods
	h.render(w, r, "pages/inventory/ledger.html", "Buku Besar Produk", data, http.StatusOK)
}

func (h *Handler) exportLedger(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	filter, _, errs := parseFilter(r)
	if len(errs) > 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	name := "ledger"
	if filter.Name != "" {
		name = "ledger-" + strings.ReplaceAll(strings.ToLower(filter.Name), " ", "-")
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	if err := h.service.ExportLedger(r.Context(), owner, filter, w); err != nil {
		h.logger.Error("export ledger", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) showStockCard(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	filter, form, errs := parseFilter(r)
	data := pageData{Filter: form, Errors: errs}
	if filter.Name != "" && len(errs) == 0 {
		card, err := h.service.MaterialCard(r.Context(), owner, filter)
		if err != nil {
			h.logger.Error("load stock card", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		} else {
			data.Records = card
		}
	}
	materials, err := h.service.RawMaterials(r.Context(), owner)
	if err != nil {
		h.logger.Warn("load raw materials", slog.Any("error", err))
	}
	data.Options = materials
	h.render(w, r, "pages/inventory/stock_card.html", "Kartu Stok Bahan", data, http.StatusOK)
}

func parseFilter(r *http.Request) (Filter, filterForm, map[string]string) {
	q := r.URL.Query()
	form := filterForm{Name: strings.TrimSpace(q.Get("name")), From: q.Get("from"), To: q.Get("to")}
	errs := map[string]string{}
	filter := Filter{Name: form.Name}
	if form.From != "" {
		t, err := time.Parse(dateLayout, form.From)
		if err != nil {
			errs["from"] = "Tanggal mulai tidak valid"
		}
		filter.From = t
	}
	if form.To != "" {
		t, err := time.Parse(dateLayout, form.To)
		if err != nil {
			errs["to"] = "Tanggal akhir tidak valid"
		}
		filter.To = t
	}
	return filter, form, errs
}
