package services

import (
	"strings"
	"time"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

const (
	// recurringOccurrencesLimit caps the future occurrences generated for
	// a recurring series beyond the master.
	recurringOccurrencesLimit = 24
	// recurringHorizonYears stops recurring generation this far past the
	// master date even before the occurrence cap is hit.
	recurringHorizonYears = 2
	// maxInstallments is the hard ceiling on the size of an installment
	// series, master included.
	maxInstallments = 120
)

// nextDate advances a date by one unit of the given frequency. Returns
// a zero time for an unknown frequency so generation loops stop.
func nextDate(current time.Time, freq models.Frequency) time.Time {
	switch freq {
	case models.FrequencyDaily:
		return current.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case models.FrequencyBiweekly:
		return current.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return current.AddDate(0, 1, 0)
	case models.FrequencyBimonthly:
		return current.AddDate(0, 2, 0)
	case models.FrequencyQuarterly:
		return current.AddDate(0, 3, 0)
	case models.FrequencyYearly:
		return current.AddDate(1, 0, 0)
	default:
		return time.Time{}
	}
}

// dateOnly truncates a timestamp to its calendar day in UTC. All ledger
// dates are compared at day granularity.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay builds a date from year/month and a configured day of month,
// pulling the day back to the month's last day when it overflows.
func clampDay(year int, month time.Month, day int) time.Time {
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// validateSeriesConfig rejects inconsistent series flags on a create
// request: a transaction is recurring xor installment, and the
// configuration fields of each mode require their flag.
func validateSeriesConfig(in *CreateTransactionInput) error {
	if in.Recurring && in.Installment {
		return apperr.BadRequest("a transaction cannot be both recurring and installment")
	}
	if !in.Recurring && (in.Frequency != nil || in.RecurringStartDate != nil) {
		return apperr.BadRequest("frequency and recurringStartDate require recurring to be set")
	}
	if !in.Installment && (in.InstallmentCount != nil || in.InstallmentUnit != nil) {
		return apperr.BadRequest("installmentCount and installmentUnit require installment to be set")
	}
	if in.Recurring && in.Frequency == nil {
		return apperr.BadRequest("recurring transactions require a frequency")
	}
	if in.Installment {
		if in.InstallmentCount == nil || *in.InstallmentCount < 1 {
			return apperr.BadRequest("installment transactions require installmentCount >= 1")
		}
		if *in.InstallmentCount > maxInstallments {
			return apperr.BadRequest("installmentCount cannot exceed %d", maxInstallments)
		}
		if in.InstallmentUnit == nil {
			return apperr.BadRequest("installment transactions require installmentUnit")
		}
	}
	return nil
}

// seriesFieldViolations lists the series-configuration fields present in
// an update patch. Children of a series must never carry these; the same
// check backs both the create and update paths.
func seriesFieldViolations(patch *UpdateTransactionInput) []string {
	var fields []string
	if patch.Recurring != nil {
		fields = append(fields, "recurring")
	}
	if patch.Frequency != nil {
		fields = append(fields, "frequency")
	}
	if patch.RecurringStartDate != nil {
		fields = append(fields, "recurringStartDate")
	}
	if patch.Installment != nil {
		fields = append(fields, "installment")
	}
	if patch.InstallmentCount != nil {
		fields = append(fields, "installmentCount")
	}
	if patch.InstallmentCurrent != nil {
		fields = append(fields, "installmentCurrent")
	}
	if patch.InstallmentUnit != nil {
		fields = append(fields, "installmentUnit")
	}
	return fields
}

// rejectSeriesFieldsOnChild fails when a patch touches series
// configuration on a non-master record.
func rejectSeriesFieldsOnChild(trn *models.Transaction, patch *UpdateTransactionInput) error {
	if trn.ParentID == nil {
		return nil
	}
	if fields := seriesFieldViolations(patch); len(fields) > 0 {
		return apperr.BadRequest("series fields (%s) cannot be changed on a series occurrence",
			strings.Join(fields, ", "))
	}
	return nil
}
