package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-mill/internal/shared"
)

const dateLayout = "2006-01-02"

type formParser struct {
	r    *http.Request
	errs map[string]string
}

func newFormParser(r *http.Request) *formParser {
	return &formParser{r: r, errs: map[string]string{}}
}

func (p *formParser) text(field string) string {
	return strings.TrimSpace(p.r.PostFormValue(field))
}

func (p *formParser) date(field, key string) time.Time {
	raw := p.text(field)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		p.errs[key] = "tanggal tidak valid"
	}
	return t
}

func (p *formParser) number(field, key string) float64 {
	return p.parseNumber(p.text(field), key)
}

func (p *formParser) parseNumber(raw, key string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		p.errs[key] = "angka tidak valid"
	}
	return v
}

func parseVoucherForm(r *http.Request, owner string) (VoucherInput, map[string]string) {
	p := newFormParser(r)
	in := VoucherInput{
		Owner:        owner,
		Date:         p.date("date", "Date"),
		MaterialName: p.text("material_name"),
		Code:         p.text("code"),
		Quantity:     p.number("quantity", "Quantity"),
		UnitType:     p.text("unit_type"),
		PricePerUnit: p.number("price_per_unit", "PricePerUnit"),
		Remarks:      p.text("remarks"),
		SubmissionID: p.text("submission_id"),
	}
	return in, p.errs
}

func parseProcessForm(r *http.Request, owner string) (ProcessInput, map[string]string) {
	p := newFormParser(r)
	in := ProcessInput{
		Owner:              owner,
		Date:               p.date("date", "Date"),
		ProcessName:        p.text("process_name"),
		OutputProductName:  p.text("output_product_name"),
		OutputProductCode:  p.text("output_product_code"),
		TotalProcessOutput: p.number("total_process_output", "TotalProcessOutput"),
		OutputUnit:         p.text("output_unit"),
		Notes:              p.text("notes"),
		SubmissionID:       p.text("submission_id"),
	}
	materials := r.PostForm["line_material"]
	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	for i, name := range materials {
		name = strings.TrimSpace(name)
		qtyRaw := at(r.PostForm["line_quantity"], i)
		ratioRaw := at(r.PostForm["line_ratio"], i)
		if name == "" && qtyRaw == "" && ratioRaw == "" {
			continue
		}
		key := "Lines[" + strconv.Itoa(len(in.Lines)) + "]"
		in.Lines = append(in.Lines, ProcessLineInput{
			MaterialName: name,
			Quantity:     p.parseNumber(qtyRaw, key+".Quantity"),
			Ratio:        p.parseNumber(ratioRaw, key+".Ratio"),
			Code:         at(r.PostForm["line_code"], i),
			Unit:         at(r.PostForm["line_unit"], i),
		})
	}
	return in, p.errs
}

func parseOutputForm(r *http.Request, owner string) (OutputInput, map[string]string) {
	p := newFormParser(r)
	in := OutputInput{
		Owner:         owner,
		Date:          p.date("date", "Date"),
		ProcessID:     p.text("process_id"),
		ScrapeQty:     p.number("scrape_qty", "ScrapeQty"),
		ScrapeUnit:    DeductionUnit(p.text("scrape_unit")),
		ReductionQty:  p.number("reduction_qty", "ReductionQty"),
		ReductionUnit: DeductionUnit(p.text("reduction_unit")),
		ProcessCharge: p.number("process_charge", "ProcessCharge"),
		Notes:         p.text("notes"),
		SubmissionID:  p.text("submission_id"),
	}
	return in, p.errs
}

func parseSaleForm(r *http.Request, owner string) (SaleInput, map[string]string) {
	p := newFormParser(r)
	in := SaleInput{
		Owner:        owner,
		Date:         p.date("date", "Date"),
		ProductName:  p.text("product_name"),
		ClientCode:   p.text("client_code"),
		Quantity:     p.number("quantity", "Quantity"),
		SalePrice:    p.number("sale_price", "SalePrice"),
		SubmissionID: p.text("submission_id"),
	}
	return in, p.errs
}

func listFilter(r *http.Request) (Filter, filterForm) {
	filter, form, _ := parseFilter(r)
	return filter, form
}

// vouchers

func (h *Handler) voucherPage(w http.ResponseWriter, r *http.Request, form VoucherInput, editID string, errs map[string]string, status int) {
	owner := shared.UsernameFromContext(r.Context())
	filter, ff := listFilter(r)
	records, err := h.service.ListVouchers(r.Context(), owner, filter)
	if err != nil {
		h.logger.Error("list vouchers", slog.Any("error", err))
	}
	h.render(w, r, "pages/inventory/vouchers.html", "Voucher Bahan Baku", pageData{
		Records: records, Form: form, EditID: editID, SubmissionID: form.SubmissionID, Errors: errs, Filter: ff,
	}, status)
}

func (h *Handler) showVouchers(w http.ResponseWriter, r *http.Request) {
	h.voucherPage(w, r, VoucherInput{Date: time.Now(), UnitType: "kg"}, "", nil, http.StatusOK)
}

func (h *Handler) editVoucher(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	v, err := h.service.GetVoucher(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.settle(w, r, "edit voucher", Outcome{}, err, "", "/inventory/vouchers", nil)
		return
	}
	form := VoucherInput{
		Date: v.Date, MaterialName: v.MaterialName, Code: v.Code, Quantity: v.Quantity,
		UnitType: v.UnitType, PricePerUnit: v.PricePerUnit, Remarks: v.Remarks,
	}
	h.voucherPage(w, r, form, v.ID, nil, http.StatusOK)
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, errs := parseVoucherForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.voucherPage(w, r, in, "", errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.CreateVoucher(r.Context(), in)
	h.settle(w, r, "create voucher", out, err, "Voucher berhasil disimpan", "/inventory/vouchers", func(errs map[string]string, status int) {
		h.voucherPage(w, r, in, "", errs, status)
	})
}

func (h *Handler) updateVoucher(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in, errs := parseVoucherForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.voucherPage(w, r, in, id, errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.UpdateVoucher(r.Context(), id, in)
	h.settle(w, r, "update voucher", out, err, "Voucher berhasil diperbarui", "/inventory/vouchers", func(errs map[string]string, status int) {
		h.voucherPage(w, r, in, id, errs, status)
	})
}

func (h *Handler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteVoucher(r.Context(), shared.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	h.settle(w, r, "delete voucher", out, err, "Voucher berhasil dihapus", "/inventory/vouchers", nil)
}

// processes

func (h *Handler) processPage(w http.ResponseWriter, r *http.Request, form ProcessInput, editID string, errs map[string]string, status int) {
	owner := shared.UsernameFromContext(r.Context())
	filter, ff := listFilter(r)
	records, err := h.service.ListProcesses(r.Context(), owner, filter)
	if err != nil {
		h.logger.Error("list processes", slog.Any("error", err))
	}
	materials, err := h.service.RawMaterials(r.Context(), owner)
	if err != nil {
		h.logger.Warn("load raw materials", slog.Any("error", err))
	}
	// Always offer a blank line to add another material.
	form.Lines = append(form.Lines, ProcessLineInput{})
	h.render(w, r, "pages/inventory/processes.html", "Proses Produksi", pageData{
		Records: records, Form: form, EditID: editID, SubmissionID: form.SubmissionID, Errors: errs, Filter: ff, Options: materials,
	}, status)
}

func (h *Handler) showProcesses(w http.ResponseWriter, r *http.Request) {
	h.processPage(w, r, ProcessInput{Date: time.Now(), OutputUnit: "kg"}, "", nil, http.StatusOK)
}

func (h *Handler) editProcess(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	p, err := h.service.GetProcess(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.settle(w, r, "edit process", Outcome{}, err, "", "/inventory/processes", nil)
		return
	}
	form := ProcessInput{
		Date: p.Date, ProcessName: p.ProcessName, OutputProductName: p.OutputProductName,
		OutputProductCode: p.OutputProductCode, TotalProcessOutput: p.TotalProcessOutput,
		OutputUnit: p.OutputUnit, Notes: p.Notes,
	}
	for _, l := range p.Lines {
		form.Lines = append(form.Lines, ProcessLineInput{MaterialName: l.MaterialName, Quantity: l.Quantity, Ratio: l.Ratio, Code: l.Code, Unit: l.Unit})
	}
	h.processPage(w, r, form, p.ID, nil, http.StatusOK)
}

func (h *Handler) createProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, errs := parseProcessForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.processPage(w, r, in, "", errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.CreateProcess(r.Context(), in)
	h.settle(w, r, "create process", out, err, "Proses produksi berhasil disimpan", "/inventory/processes", func(errs map[string]string, status int) {
		h.processPage(w, r, in, "", errs, status)
	})
}

func (h *Handler) updateProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in, errs := parseProcessForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.processPage(w, r, in, id, errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.UpdateProcess(r.Context(), id, in)
	h.settle(w, r, "update process", out, err, "Proses produksi berhasil diperbarui", "/inventory/processes", func(errs map[string]string, status int) {
		h.processPage(w, r, in, id, errs, status)
	})
}

func (h *Handler) deleteProcess(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteProcess(r.Context(), shared.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	h.settle(w, r, "delete process", out, err, "Proses produksi berhasil dihapus", "/inventory/processes", nil)
}

// outputs

func (h *Handler) outputPage(w http.ResponseWriter, r *http.Request, form OutputInput, editID string, errs map[string]string, status int) {
	owner := shared.UsernameFromContext(r.Context())
	filter, ff := listFilter(r)
	records, err := h.service.ListOutputs(r.Context(), owner, filter)
	if err != nil {
		h.logger.Error("list outputs", slog.Any("error", err))
	}
	processes, err := h.service.ListProcesses(r.Context(), owner, Filter{})
	if err != nil {
		h.logger.Warn("list processes", slog.Any("error", err))
	}
	h.render(w, r, "pages/inventory/outputs.html", "Hasil Produksi", pageData{
		Records: records, Form: form, EditID: editID, SubmissionID: form.SubmissionID, Errors: errs, Filter: ff, Options: processes,
	}, status)
}

func (h *Handler) showOutputs(w http.ResponseWriter, r *http.Request) {
	form := OutputInput{Date: time.Now(), ProcessID: r.URL.Query().Get("process_id"), ScrapeUnit: DeductionKg, ReductionUnit: DeductionKg}
	h.outputPage(w, r, form, "", nil, http.StatusOK)
}

func (h *Handler) editOutput(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	o, err := h.service.GetOutput(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.settle(w, r, "edit output", Outcome{}, err, "", "/inventory/outputs", nil)
		return
	}
	form := OutputInput{
		Date: o.Date, ProcessID: o.ProcessID, ScrapeQty: o.ScrapeQty, ScrapeUnit: o.ScrapeUnit,
		ReductionQty: o.ReductionQty, ReductionUnit: o.ReductionUnit, ProcessCharge: o.ProcessCharge, Notes: o.Notes,
	}
	h.outputPage(w, r, form, o.ID, nil, http.StatusOK)
}

func (h *Handler) createOutput(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, errs := parseOutputForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.outputPage(w, r, in, "", errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.CreateOutput(r.Context(), in)
	h.settle(w, r, "create output", out, err, "Hasil produksi berhasil disimpan", "/inventory/outputs", func(errs map[string]string, status int) {
		h.outputPage(w, r, in, "", errs, status)
	})
}

func (h *Handler) updateOutput(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in, errs := parseOutputForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.outputPage(w, r, in, id, errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.UpdateOutput(r.Context(), id, in)
	h.settle(w, r, "update output", out, err, "Hasil produksi berhasil diperbarui", "/inventory/outputs", func(errs map[string]string, status int) {
		h.outputPage(w, r, in, id, errs, status)
	})
}

func (h *Handler) deleteOutput(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteOutput(r.Context(), shared.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	h.settle(w, r, "delete output", out, err, "Hasil produksi berhasil dihapus", "/inventory/outputs", nil)
}

// sales

func (h *Handler) salePage(w http.ResponseWriter, r *http.Request, form SaleInput, editID string, errs map[string]string, status int) {
	owner := shared.UsernameFromContext(r.Context())
	filter, ff := listFilter(r)
	records, err := h.service.ListSales(r.Context(), owner, filter)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
	}
	goods, err := h.service.FinishedGoods(r.Context(), owner)
	if err != nil {
		h.logger.Warn("load finished goods", slog.Any("error", err))
	}
	h.render(w, r, "pages/inventory/sales.html", "Penjualan", pageData{
		Records: records, Form: form, EditID: editID, SubmissionID: form.SubmissionID, Errors: errs, Filter: ff, Options: goods,
	}, status)
}

func (h *Handler) showSales(w http.ResponseWriter, r *http.Request) {
	h.salePage(w, r, SaleInput{Date: time.Now()}, "", nil, http.StatusOK)
}

func (h *Handler) editSale(w http.ResponseWriter, r *http.Request) {
	owner := shared.UsernameFromContext(r.Context())
	s, err := h.service.GetSale(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.settle(w, r, "edit sale", Outcome{}, err, "", "/inventory/sales", nil)
		return
	}
	form := SaleInput{Date: s.Date, ProductName: s.ProductName, ClientCode: s.ClientCode, Quantity: s.Quantity, SalePrice: s.SalePrice}
	h.salePage(w, r, form, s.ID, nil, http.StatusOK)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, errs := parseSaleForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.salePage(w, r, in, "", errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.CreateSale(r.Context(), in)
	h.settle(w, r, "create sale", out, err, "Penjualan berhasil disimpan", "/inventory/sales", func(errs map[string]string, status int) {
		h.salePage(w, r, in, "", errs, status)
	})
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in, errs := parseSaleForm(r, shared.UsernameFromContext(r.Context()))
	if len(errs) > 0 {
		h.salePage(w, r, in, id, errs, http.StatusBadRequest)
		return
	}
	out, err := h.service.UpdateSale(r.Context(), id, in)
	h.settle(w, r, "update sale", out, err, "Penjualan berhasil diperbarui", "/inventory/sales", func(errs map[string]string, status int) {
		h.salePage(w, r, in, id, errs, status)
	})
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteSale(r.Context(), shared.UsernameFromContext(r.Context()), chi.URLParam(r, "id"))
	h.settle(w, r, "delete sale", out, err, "Penjualan berhasil dihapus", "/inventory/sales", nil)
}
