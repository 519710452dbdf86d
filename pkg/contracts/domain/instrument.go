package domain

// Column headers of the flattened instrument table, in output order.
const (
	ColumnID                           = "FinInstrmGnlAttrbts.Id"
	ColumnFullName                     = "FinInstrmGnlAttrbts.FullNm"
	ColumnClassificationType           = "FinInstrmGnlAttrbts.ClssfctnTp"
	ColumnCommodityDerivativeIndicator = "FinInstrmGnlAttrbts.CmmdtyDerivInd"
	ColumnCurrency                     = "FinInstrmGnlAttrbts.NtnlCcy"
	ColumnIssuer                       = "Issr"
)

// InstrumentHeader is the fixed header row of every instrument export
var InstrumentHeader = []string{
	ColumnID,
	ColumnFullName,
	ColumnClassificationType,
	ColumnCommodityDerivativeIndicator,
	ColumnCurrency,
	ColumnIssuer,
}

// NullString is a text value that may be absent from the source record
type NullString struct {
	String string `json:"string"`
	Valid  bool   `json:"valid"`
}

// NewNullString returns a present value
func NewNullString(s string) NullString {
	return NullString{String: s, Valid: true}
}

// Ptr returns nil for an absent value
func (n NullString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// InstrumentRow is one financial instrument record flattened to the six
// exported columns. Absent source elements are kept as invalid NullStrings so
// that sinks can decide how to render them.
type InstrumentRow struct {
	ID                           NullString `json:"id"`
	FullName                     NullString `json:"full_name"`
	ClassificationType           NullString `json:"classification_type"`
	CommodityDerivativeIndicator NullString `json:"commodity_derivative_indicator"`
	Currency                     NullString `json:"currency"`
	Issuer                       NullString `json:"issuer"`
}

// Fields returns the row's columns in header order
func (r InstrumentRow) Fields() []NullString {
	return []NullString{
		r.ID,
		r.FullName,
		r.ClassificationType,
		r.CommodityDerivativeIndicator,
		r.Currency,
		r.Issuer,
	}
}

// Values returns the row as strings in header order, absent values as ""
func (r InstrumentRow) Values() []string {
	fields := r.Fields()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = f.String
	}
	return values
}
