package firds

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "firdscli/internal/errors"
	"firdscli/internal/shared/testutil"
	"firdscli/pkg/contracts/domain"
)

func writeDocument(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DLTINS_20210117_01of01.xml")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func collect(t *testing.T, c *Collection) ([]domain.InstrumentRow, error) {
	t.Helper()
	var rows []domain.InstrumentRow
	for row, err := range c.Records() {
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func extractAll(t *testing.T, content []byte, opts ...Option) ([]domain.InstrumentRow, *Collection, error) {
	t.Helper()
	c, err := ExtractRoot(writeDocument(t, content), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	rows, err := collect(t, c)
	return rows, c, err
}

func TestRecordsSkipHeaderAndKeepOrder(t *testing.T) {
	fixtures := testutil.NumberedInstruments(5)
	rows, c, err := extractAll(t, testutil.DLTINSDocument(fixtures))
	require.NoError(t, err)

	// childCount - 1 rows, one per record, in document order
	require.Len(t, rows, len(fixtures))
	for i, f := range fixtures {
		assert.Equal(t, domain.InstrumentRow{
			ID:                           domain.NewNullString(f.ID),
			FullName:                     domain.NewNullString(f.FullName),
			ClassificationType:           domain.NewNullString(f.ClassificationType),
			CommodityDerivativeIndicator: domain.NewNullString(f.CommodityDerivativeIndicator),
			Currency:                     domain.NewNullString(f.Currency),
			Issuer:                       domain.NewNullString(f.Issuer),
		}, rows[i], "record %d", i)
	}

	assert.Equal(t, Stats{Records: 5, Yielded: 5}, c.Stats())
}

func TestCommentsDoNotTakePositions(t *testing.T) {
	fixtures := testutil.NumberedInstruments(2)
	doc := string(testutil.DLTINSDocument(fixtures))
	for _, target := range []string{"<Hdr>", "<Pyld>", "<Document ", "<RptHdr>"} {
		doc = strings.Replace(doc, target, "<!-- generated -->\n<?render mode=\"draft\"?>"+target, 1)
	}

	rows, c, err := extractAll(t, []byte(doc))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fixtures[0].ID, rows[0].ID.String)
	assert.Equal(t, fixtures[1].ID, rows[1].ID.String)
	assert.Equal(t, Stats{Records: 2, Yielded: 2}, c.Stats())
}

func TestRecordsEmptyCollection(t *testing.T) {
	rows, c, err := extractAll(t, testutil.DLTINSDocument(nil))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, c.Stats().Records)
}

func TestMissingCurrencyIsNull(t *testing.T) {
	fixtures := testutil.NumberedInstruments(3)
	fixtures[1].OmitCurrency = true

	rows, _, err := extractAll(t, testutil.DLTINSDocument(fixtures))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.False(t, rows[1].Currency.Valid)
	assert.Equal(t, fixtures[1].ID, rows[1].ID.String)
	assert.True(t, rows[0].Currency.Valid)
	assert.True(t, rows[2].Currency.Valid)
}

func TestMissingIssuerIsNull(t *testing.T) {
	fixtures := testutil.NumberedInstruments(2)
	fixtures[0].OmitIssuer = true

	rows, _, err := extractAll(t, testutil.DLTINSDocument(fixtures))
	require.NoError(t, err)
	assert.False(t, rows[0].Issuer.Valid)
	assert.True(t, rows[1].Issuer.Valid)
}

func TestMissingGeneralAttributesFails(t *testing.T) {
	fixtures := testutil.NumberedInstruments(4)
	fixtures[2].OmitGeneralAttributes = true

	rows, _, err := extractAll(t, testutil.DLTINSDocument(fixtures))
	require.Error(t, err)

	// rows before the broken record were already produced
	assert.Len(t, rows, 2)
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 3, recErr.Index)
	assert.Equal(t, "FinInstrm", recErr.Element)
	assert.Contains(t, recErr.Reason, ElemGeneralAttributes)
}

func TestMissingRecordKindFails(t *testing.T) {
	fixtures := testutil.NumberedInstruments(2)
	fixtures[0].OmitRecordKind = true

	_, _, err := extractAll(t, testutil.DLTINSDocument(fixtures))
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Index)
}

func TestSkipMalformedRecords(t *testing.T) {
	fixtures := testutil.NumberedInstruments(5)
	fixtures[1].OmitGeneralAttributes = true
	fixtures[3].OmitRecordKind = true

	logger, handler := testutil.NewTestLogger(t)
	rows, c, err := extractAll(t, testutil.DLTINSDocument(fixtures),
		WithSkipMalformed(true), WithLogger(logger))
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, fixtures[0].ID, rows[0].ID.String)
	assert.Equal(t, fixtures[2].ID, rows[1].ID.String)
	assert.Equal(t, fixtures[4].ID, rows[2].ID.String)
	assert.Equal(t, Stats{Records: 5, Yielded: 3, Skipped: 2}, c.Stats())

	skipped := handler.Find("record_skipped")
	require.Len(t, skipped, 2)
	assert.Equal(t, slog.LevelWarn, skipped[0].Level)
	testutil.AssertLogAttr(t, handler, "record", int64(2))
}

func TestFieldsAreNamespaceQualified(t *testing.T) {
	// Id lives in a foreign namespace, so it is not the field we look for
	doc := strings.Replace(string(testutil.DLTINSDocument(testutil.NumberedInstruments(1))),
		"<Id>DE000A000000</Id>",
		`<Id xmlns="urn:example:other">DE000A000000</Id>`, 1)

	rows, _, err := extractAll(t, []byte(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].ID.Valid)
	assert.True(t, rows[0].FullName.Valid)
}

func TestPrefixedNamespaceResolves(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<BizData><Hdr/><Pyld><a:Document xmlns:a="urn:iso:std:iso:20022:tech:xsd:auth.036.001.02"><a:FinInstrmRptgRefDataDltaRpt>
<a:RptHdr/>
<a:FinInstrm><a:NewRcrd><a:FinInstrmGnlAttrbts><a:Id>X1</a:Id><a:FullNm>A &amp; B, Inc</a:FullNm><a:ClssfctnTp>ESVUFR</a:ClssfctnTp><a:CmmdtyDerivInd>true</a:CmmdtyDerivInd><a:NtnlCcy>USD</a:NtnlCcy></a:FinInstrmGnlAttrbts><a:Issr>ISSUER1</a:Issr></a:NewRcrd></a:FinInstrm>
</a:FinInstrmRptgRefDataDltaRpt></a:Document></Pyld></BizData>`

	rows, _, err := extractAll(t, []byte(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"X1", "A & B, Inc", "ESVUFR", "true", "USD", "ISSUER1"}, rows[0].Values())
}

func TestNavigationDrift(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantStep int
		wantErr  string
	}{
		{
			name:     "unexpected root",
			doc:      `<Other><Hdr/><Pyld/></Other>`,
			wantStep: 0,
			wantErr:  "expected <BizData>",
		},
		{
			name:     "payload missing",
			doc:      `<BizData><Hdr/></BizData>`,
			wantStep: 1,
			wantErr:  "BizData has no child at index 1",
		},
		{
			name:     "payload renamed",
			doc:      `<BizData><Hdr/><Payload/></BizData>`,
			wantStep: 1,
			wantErr:  "is <Payload>, expected <Pyld>",
		},
		{
			name:     "wrong report type",
			doc:      `<BizData><Hdr/><Pyld><Document><FinInstrmRptgRefDataRpt/></Document></Pyld></BizData>`,
			wantStep: 3,
			wantErr:  "expected <FinInstrmRptgRefDataDltaRpt>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractRoot(writeDocument(t, []byte(tt.doc)))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))

			var navErr *NavigationError
			require.ErrorAs(t, err, &navErr)
			assert.Equal(t, tt.wantStep, navErr.Step)
			assert.Contains(t, navErr.Error(), tt.wantErr)
		})
	}
}

func TestMalformedXML(t *testing.T) {
	t.Run("before collection", func(t *testing.T) {
		_, err := ExtractRoot(writeDocument(t, []byte(`<BizData><Hdr></BizData>`)))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
	})

	t.Run("inside a record", func(t *testing.T) {
		doc := string(testutil.DLTINSDocument(testutil.NumberedInstruments(3)))
		cut := strings.LastIndex(doc, "<FinInstrm>")
		doc = doc[:cut] + "<FinInstrm><NewRcrd><broken"

		rows, _, err := extractAll(t, []byte(doc))
		require.Error(t, err)
		assert.Len(t, rows, 2)
		assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
	})

	t.Run("truncated after records", func(t *testing.T) {
		doc := string(testutil.DLTINSDocument(testutil.NumberedInstruments(2)))
		doc = doc[:strings.Index(doc, "</FinInstrmRptgRefDataDltaRpt>")]

		_, _, err := extractAll(t, []byte(doc))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ExtractRoot(writeDocument(t, nil))
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ExtractRoot(filepath.Join(t.TempDir(), "absent.xml"))
		assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
	})
}

func TestRecordsSingleUse(t *testing.T) {
	c, err := ExtractRoot(writeDocument(t, testutil.DLTINSDocument(testutil.NumberedInstruments(3))))
	require.NoError(t, err)
	defer c.Close()

	rows, err := collect(t, c)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = collect(t, c)
	assert.True(t, errors.Is(err, ErrCollectionConsumed))
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))
	assert.Equal(t, apperrors.ExitParsing, apperrors.ExitCode(err))

	// a fresh ExtractRoot reads the document again
	again, err := ExtractRoot(c.Path())
	require.NoError(t, err)
	defer again.Close()
	rows, err = collect(t, again)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRecordsEarlyBreakStillConsumes(t *testing.T) {
	c, err := ExtractRoot(writeDocument(t, testutil.DLTINSDocument(testutil.NumberedInstruments(10))))
	require.NoError(t, err)
	defer c.Close()

	n := 0
	for _, err := range c.Records() {
		require.NoError(t, err)
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, c.Stats().Yielded)

	_, err = collect(t, c)
	assert.ErrorIs(t, err, ErrCollectionConsumed)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeParsing))
}

func TestLargeDeltaFile(t *testing.T) {
	if testing.Short() {
		t.Skip("generates a 141,382 child collection")
	}

	const records = 141381
	path := testutil.WriteDLTINSFile(t, t.TempDir(), records)

	c, err := ExtractRoot(path, WithProgressInterval(0))
	require.NoError(t, err)
	defer c.Close()

	count := 0
	var last domain.InstrumentRow
	for row, err := range c.Records() {
		require.NoError(t, err)
		count++
		last = row
	}

	assert.Equal(t, records, count)
	assert.Equal(t, testutil.NumberedInstrument(records-1).ID, last.ID.String)
	assert.Equal(t, Stats{Records: records, Yielded: records}, c.Stats())
}

func TestSchemaPathString(t *testing.T) {
	assert.Equal(t, "BizData", DLTINS.PathString(0))
	assert.Equal(t, "BizData/Pyld/Document", DLTINS.PathString(2))
	assert.Equal(t, "BizData/Pyld/Document/FinInstrmRptgRefDataDltaRpt", DLTINS.PathString(10))

	anyRoot := DLTINS
	anyRoot.RootName = ""
	assert.Equal(t, "*/Pyld", anyRoot.PathString(1))
}
