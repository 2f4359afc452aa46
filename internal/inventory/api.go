package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-mill/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-mill/internal/shared"
)

// MountAPI registers the JSON inventory routes.
func (h *Handler) MountAPI(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.requireUser != nil {
			r.Use(h.requireUser)
		}
		r.Get("/snapshot", h.apiSnapshot)
		r.Get("/ledger", h.apiLedger)
		r.Get("/stock-card", h.apiStockCard)

		r.Get("/vouchers", listJSON(h, h.service.ListVouchers))
		r.Post("/vouchers", apiCreate(h, decodeVoucher, h.service.CreateVoucher, "Voucher berhasil disimpan"))
		r.Put("/vouchers/{id}", apiUpdate(h, decodeVoucher, h.service.UpdateVoucher, "Voucher berhasil diperbarui"))
		r.Delete("/vouchers/{id}", apiDelete(h, h.service.DeleteVoucher, "Voucher berhasil dihapus"))

		r.Get("/processes", listJSON(h, h.service.ListProcesses))
		r.Post("/processes", apiCreate(h, decodeProcess, h.service.CreateProcess, "Proses produksi berhasil disimpan"))
		r.Put("/processes/{id}", apiUpdate(h, decodeProcess, h.service.UpdateProcess, "Proses produksi berhasil diperbarui"))
		r.Delete("/processes/{id}", apiDelete(h, h.service.DeleteProcess, "Proses produksi berhasil dihapus"))

		r.Get("/outputs", listJSON(h, h.service.ListOutputs))
		r.Post("/outputs", apiCreate(h, decodeOutput, h.service.CreateOutput, "Hasil produksi berhasil disimpan"))
		r.Put("/outputs/{id}", apiUpdate(h, decodeOutput, h.service.UpdateOutput, "Hasil produksi berhasil diperbarui"))
		r.Delete("/outputs/{id}", apiDelete(h, h.service.DeleteOutput, "Hasil produksi berhasil dihapus"))

		r.Get("/sales", listJSON(h, h.service.ListSales))
		r.Post("/sales", apiCreate(h, decodeSale, h.service.CreateSale, "Penjualan berhasil disimpan"))
		r.Put("/sales/{id}", apiUpdate(h, decodeSale, h.service.UpdateSale, "Penjualan berhasil diperbarui"))
		r.Delete("/sales/{id}", apiDelete(h, h.service.DeleteSale, "Penjualan berhasil dihapus"))
	})
}

// jsonDate accepts "2006-01-02" or RFC 3339.
type jsonDate struct {
	time.Time
}

func (d *jsonDate) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return newValidationError("Date", "tanggal tidak valid")
	}
	d.Time = t
	return nil
}

type voucherRequest struct {
	Date         jsonDate `json:"date"`
	MaterialName string   `json:"material_name"`
	Code         string   `json:"code"`
	Quantity     float64  `json:"quantity"`
	UnitType     string   `json:"unit_type"`
	PricePerUnit float64  `json:"price_per_unit"`
	Remarks      string   `json:"remarks"`
	SubmissionID string   `json:"submission_id"`
}

type processRequest struct {
	Date               jsonDate           `json:"date"`
	ProcessName        string             `json:"process_name"`
	OutputProductName  string             `json:"output_product_name"`
	OutputProductCode  string             `json:"output_product_code"`
	TotalProcessOutput float64            `json:"total_process_output"`
	OutputUnit         string             `json:"output_unit"`
	Lines              []ProcessLineInput `json:"lines"`
	Notes              string             `json:"notes"`
	SubmissionID       string             `json:"submission_id"`
}

type outputRequest struct {
	Date          jsonDate      `json:"date"`
	ProcessID     string        `json:"process_id"`
	ScrapeQty     float64       `json:"scrape_qty"`
	ScrapeUnit    DeductionUnit `json:"scrape_unit"`
	ReductionQty  float64       `json:"reduction_qty"`
	ReductionUnit DeductionUnit `json:"reduction_unit"`
	ProcessCharge float64       `json:"process_charge"`
	Notes         string        `json:"notes"`
	SubmissionID  string        `json:"submission_id"`
}

type saleRequest struct {
	Date         jsonDate `json:"date"`
	ProductName  string   `json:"product_name"`
	ClientCode   string   `json:"client_code"`
	Quantity     float64  `json:"quantity"`
	SalePrice    float64  `json:"sale_price"`
	SubmissionID string   `json:"submission_id"`
}

func decodeVoucher(r *http.Request, owner string) (VoucherInput, error) {
	var req voucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return VoucherInput{}, err
	}
	return VoucherInput{
		Owner: owner, Date: req.Date.Time, MaterialName: req.MaterialName, Code: req.Code,
		Quantity: req.Quantity, UnitType: req.UnitType, PricePerUnit: req.PricePerUnit,
		Remarks: req.Remarks, SubmissionID: req.SubmissionID,
	}, nil
}

func decodeProcess(r *http.Request, owner string) (ProcessInput, error) {
	var req processRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return ProcessInput{}, err
	}
	return ProcessInput{
		Owner: owner, Date: req.Date.Time, ProcessName: req.ProcessName,
		OutputProductName: req.OutputProductName, OutputProductCode: req.OutputProductCode,
		TotalProcessOutput: req.TotalProcessOutput, OutputUnit: req.OutputUnit,
		Lines: req.Lines, Notes: req.Notes, SubmissionID: req.SubmissionID,
	}, nil
}

func decodeOutput(r *http.Request, owner string) (OutputInput, error) {
	var req outputRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return OutputInput{}, err
	}
	return OutputInput{
		Owner: owner, Date: req.Date.Time, ProcessID: req.ProcessID,
		ScrapeQty: req.ScrapeQty, ScrapeUnit: req.ScrapeUnit,
		ReductionQty: req.ReductionQty, ReductionUnit: req.ReductionUnit,
		ProcessCharge: req.ProcessCharge, Notes: req.Notes, SubmissionID: req.SubmissionID,
	}, nil
}

func decodeSale(r *http.Request, owner string) (SaleInput, error) {
	var req saleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return SaleInput{}, err
	}
	return SaleInput{
		Owner: owner, Date: req.Date.Time, ProductName: req.ProductName, ClientCode: req.ClientCode,
		Quantity: req.Quantity, SalePrice: req.SalePrice, SubmissionID: req.SubmissionID,
	}, nil
}

func (h *Handler) respondResult(w http.ResponseWriter, action string, out Outcome, err error, success string, created bool) {
	if err != nil {
		status := httpx.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("inventory api mutation failed", slog.String("action", action), slog.Any("error", err))
		}
		httpx.JSON(w, status, ResultFromError(err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, out.Result(success))
}

func badRequest(w http.ResponseWriter, err error) {
	res := ResultFromError(err)
	if res.Fields == nil {
		res.Message = "format permintaan tidak valid"
	}
	httpx.JSON(w, http.StatusBadRequest, res)
}

func apiCreate[T any](h *Handler, decode func(*http.Request, string) (T, error), create func(context.Context, T) (Outcome, error), success string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decode(r, shared.UsernameFromContext(r.Context()))
		if err != nil {
			badRequest(w, err)
			return
		}
		out, err := create(r.Context(), in)
		h.respondResult(w, "create", out, err, success, true)
	}
}

func apiUpdate[T any](h *Handler, decode func(*http.Request, string) (T, error), update func(context.Context, string, T) (Outcome, error), success string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decode(r, shared.UsernameFromContext(r.Context()))
		if err != nil {
			badRequest(w, err)
			return
		}
		out, err := update(r.Context(), chi.URLParam(r, "id"), in)
		h.respondResult(w, "update", out, err, success, false)
	}
}

func apiDelete(h *Handler, remove func(context.Context, string, string) (Outcome, error), success string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := remove(r.Context(), shared.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
		h.respondResult(w, "delete", out, err, success, false)
	}
}

func listJSON[T any](h *Handler, list func(context.Context, string, Filter) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, _, errs := parseFilter(r)
		if len(errs) > 0 {
			httpx.JSON(w, http.StatusBadRequest, Result{Message: "filter tidak valid", Fields: errs})
			return
		}
		records, err := list(r.Context(), shared.UsernameFromContext(r.Context()), filter)
		if err != nil {
			h.apiFailure(w, "list", err)
			return
		}
		if records == nil {
			records = []T{}
		}
		httpx.JSON(w, http.StatusOK, records)
	}
}

func (h *Handler) apiFailure(w http.ResponseWriter, action string, err error) {
	status := httpx.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("inventory api query failed", slog.String("action", action), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) apiSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), shared.UsernameFromContext(r.Context()))
	if err != nil {
		h.apiFailure(w, "snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) apiLedger(w http.ResponseWriter, r *http.Request) {
	filter, _, errs := parseFilter(r)
	if len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, Result{Message: "filter tidak valid", Fields: errs})
		return
	}
	ledger, err := h.service.ProductLedger(r.Context(), shared.UsernameFromContext(r.Context()), filter)
	if err != nil {
		h.apiFailure(w, "ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) apiStockCard(w http.ResponseWriter, r *http.Request) {
	filter, _, errs := parseFilter(r)
	if len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, Result{Message: "filter tidak valid", Fields: errs})
		return
	}
	card, err := h.service.MaterialCard(r.Context(), shared.UsernameFromContext(r.Context()), filter)
	if err != nil {
		h.apiFailure(w, "stock-card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}
