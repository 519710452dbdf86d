package firds

import (
	"strings"

	"firdscli/pkg/contracts/domain"
)

// Element names of the ISO 20022 auth.036.001.02 delta report
const (
	// InstrumentNamespace qualifies every extracted field
	InstrumentNamespace = "urn:iso:std:iso:20022:tech:xsd:auth.036.001.02"

	ElemRoot              = "BizData"
	ElemPayload           = "Pyld"
	ElemDocument          = "Document"
	ElemDeltaReport       = "FinInstrmRptgRefDataDltaRpt"
	ElemGeneralAttributes = "FinInstrmGnlAttrbts"

	ElemID                           = "Id"
	ElemFullName                     = "FullNm"
	ElemClassificationType           = "ClssfctnTp"
	ElemCommodityDerivativeIndicator = "CmmdtyDerivInd"
	ElemCurrency                     = "NtnlCcy"
	ElemIssuer                       = "Issr"
)

// PathStep names one hop from an element to one of its children: the child
// at Index must have local name Name. Index counts child elements only, so a
// comment or processing instruction ahead of the target does not shift it.
type PathStep struct {
	Index int
	Name  string
}

// Schema describes where the record collection lives and how a record is
// projected onto a row
type Schema struct {
	// Namespace qualifies the field lookups inside a record
	Namespace string

	// RootName is the expected document element; empty accepts any
	RootName string

	// CollectionPath leads from the document element to the collection
	CollectionPath []PathStep

	// HeaderChildren leading children of the collection are not records
	HeaderChildren int

	// GeneralAttributes is the container of the five attribute fields,
	// a child of the record kind element
	GeneralAttributes string

	// AttributeFields are looked up under GeneralAttributes, in column order
	AttributeFields [5]string

	// IssuerField is looked up under the record kind element
	IssuerField string
}

// DLTINS is the layout of ESMA FIRDS delta instrument files:
// BizData/Pyld/Document/FinInstrmRptgRefDataDltaRpt, one RptHdr, then
// FinInstrm records.
var DLTINS = Schema{
	Namespace: InstrumentNamespace,
	RootName:  ElemRoot,
	CollectionPath: []PathStep{
		{Index: 1, Name: ElemPayload},
		{Index: 0, Name: ElemDocument},
		{Index: 0, Name: ElemDeltaReport},
	},
	HeaderChildren:    1,
	GeneralAttributes: ElemGeneralAttributes,
	AttributeFields: [5]string{
		ElemID,
		ElemFullName,
		ElemClassificationType,
		ElemCommodityDerivativeIndicator,
		ElemCurrency,
	},
	IssuerField: ElemIssuer,
}

// PathString renders the expected path, e.g. BizData/Pyld/Document
func (s Schema) PathString(steps int) string {
	names := []string{s.RootName}
	if s.RootName == "" {
		names[0] = "*"
	}
	for i := 0; i < steps && i < len(s.CollectionPath); i++ {
		names = append(names, s.CollectionPath[i].Name)
	}
	return strings.Join(names, "/")
}

// project flattens one record. The record's first child element is its kind
// (NewRcrd, ModfdRcrd, TermntdRcrd, ...). Missing fields become null values;
// a missing kind or general attributes element is reported as a reason
// string.
func (s Schema) project(record *node) (domain.InstrumentRow, string) {
	kind := record.firstChild()
	if kind == nil {
		return domain.InstrumentRow{}, "record has no record kind element"
	}

	attrs := kind.child(s.Namespace, s.GeneralAttributes)
	if attrs == nil {
		return domain.InstrumentRow{}, "missing " + s.GeneralAttributes + " under " + kind.XMLName.Local
	}

	return domain.InstrumentRow{
		ID:                           attrs.field(s.Namespace, s.AttributeFields[0]),
		FullName:                     attrs.field(s.Namespace, s.AttributeFields[1]),
		ClassificationType:           attrs.field(s.Namespace, s.AttributeFields[2]),
		CommodityDerivativeIndicator: attrs.field(s.Namespace, s.AttributeFields[3]),
		Currency:                     attrs.field(s.Namespace, s.AttributeFields[4]),
		Issuer:                       kind.field(s.Namespace, s.IssuerField),
	}, ""
}
