package apbatch

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/ach"
)

// Originator identifies the paying company to the bank in NACHA files.
type Originator struct {
	ODFIRouting string
	CompanyID   string
	CompanyName string
}

const entryDescription = "VENDORPAY"

// NACHA renders a workbook's resolved payments as a CCD credit file effective on
// effective. Payments with unresolved vendors are left out and counted in skipped.
// It returns nil data when nothing could be written.
func NACHA(o Originator, wb *Workbook, created, effective time.Time) (data []byte, entries, skipped int, err error) {
	if len(o.ODFIRouting) != 9 {
		return nil, 0, 0, fmt.Errorf("ODFI routing %q must have 9 digits", o.ODFIRouting)
	}
	fh := ach.NewFileHeader()
	fh.ImmediateDestination = o.ODFIRouting
	fh.ImmediateOrigin = o.ODFIRouting
	fh.ImmediateDestinationName = "CITY NATIONAL BANK OF FL"
	fh.ImmediateOriginName = clip(strings.ToUpper(o.CompanyName), 23)
	fh.FileCreationDate = created.Format("060102")
	fh.FileCreationTime = created.Format("1504")
	fh.FileIDModifier = "A"

	bh := ach.NewBatchHeader()
	bh.ServiceClassCode = ach.CreditsOnly
	bh.StandardEntryClassCode = ach.CCD
	bh.CompanyName = clip(strings.ToUpper(companyName(o, wb)), 16)
	bh.CompanyIdentification = o.CompanyID
	bh.CompanyEntryDescription = entryDescription
	bh.EffectiveEntryDate = effective.Format("060102")
	bh.ODFIIdentification = o.ODFIRouting[:8]

	batch := ach.NewBatchCCD(bh)
	for _, p := range wb.Payments {
		if !p.Resolved {
			skipped++
			continue
		}
		entries++
		ed := ach.NewEntryDetail()
		ed.TransactionCode = ach.CheckingCredit
		ed.SetRDFI(p.Routing)
		ed.DFIAccountNumber = p.Account
		ed.Amount = int(p.Amount.Shift(2).Round(0).IntPart())
		ed.IdentificationNumber = clip(p.Invoice, 15)
		ed.SetReceivingCompany(clip(strings.ToUpper(p.Vendor), 22))
		ed.SetTraceNumber(bh.ODFIIdentification, entries)
		ed.Category = ach.CategoryForward
		batch.AddEntry(ed)
	}
	if entries == 0 {
		return nil, 0, skipped, nil
	}

	if err := batch.Create(); err != nil {
		return nil, 0, skipped, fmt.Errorf("failed to build ACH batch for %s: %w", wb.Name, err)
	}
	file := ach.NewFile()
	file.SetHeader(fh)
	file.AddBatch(batch)
	if err := file.Create(); err != nil {
		return nil, 0, skipped, fmt.Errorf("failed to build ACH file for %s: %w", wb.Name, err)
	}

	var buf bytes.Buffer
	if err := ach.NewWriter(&buf).Write(file); err != nil {
		return nil, 0, skipped, fmt.Errorf("failed to write ACH file for %s: %w", wb.Name, err)
	}
	return buf.Bytes(), entries, skipped, nil
}

// companyName is the paying location, the shared entity for the grouped family.
func companyName(o Originator, wb *Workbook) string {
	if wb.Grouped && len(wb.Payments) > 0 {
		return string(wb.Payments[0].Entity)
	}
	if wb.Name != "" {
		return wb.Name
	}
	return o.CompanyName
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
