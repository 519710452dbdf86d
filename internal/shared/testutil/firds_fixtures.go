package testutil

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// InstrumentNamespace is the auth.036.001.02 namespace of DLTINS payloads
const InstrumentNamespace = "urn:iso:std:iso:20022:tech:xsd:auth.036.001.02"

// InstrumentFixture describes one FinInstrm record of a generated DLTINS
// document. Empty Kind means NewRcrd.
type InstrumentFixture struct {
	Kind                         string
	ID                           string
	FullName                     string
	ClassificationType           string
	CommodityDerivativeIndicator string
	Currency                     string
	Issuer                       string

	OmitCurrency          bool
	OmitIssuer            bool
	OmitGeneralAttributes bool
	OmitRecordKind        bool
}

// NumberedInstrument returns a deterministic, fully populated record
func NumberedInstrument(i int) InstrumentFixture {
	kinds := []string{"NewRcrd", "ModfdRcrd", "TermntdRcrd"}
	return InstrumentFixture{
		Kind:                         kinds[i%len(kinds)],
		ID:                           fmt.Sprintf("DE000A%06d", i),
		FullName:                     fmt.Sprintf("Instrument %d, Series \"A\"", i),
		ClassificationType:           "DBFTFB",
		CommodityDerivativeIndicator: "false",
		Currency:                     "EUR",
		Issuer:                       fmt.Sprintf("549300GDPG70E3M%05d", i%100000),
	}
}

// NumberedInstruments returns n records from NumberedInstrument
func NumberedInstruments(n int) []InstrumentFixture {
	out := make([]InstrumentFixture, n)
	for i := range out {
		out[i] = NumberedInstrument(i)
	}
	return out
}

// DLTINSDocument renders a complete delta report with one header child
// followed by the given records
func DLTINSDocument(records []InstrumentFixture) []byte {
	var buf bytes.Buffer
	if err := WriteDLTINSDocument(&buf, len(records), func(i int) InstrumentFixture { return records[i] }); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteDLTINSDocument streams a document with n records produced by gen
func WriteDLTINSDocument(w io.Writer, n int, gen func(int) InstrumentFixture) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	bw.WriteString(`<BizData xmlns="urn:iso:std:iso:20022:tech:xsd:head.003.001.01" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` + "\n")
	bw.WriteString(`<Hdr><AppHdr xmlns="urn:iso:std:iso:20022:tech:xsd:head.001.001.01"><Fr><OrgId><Id><OrgId><Othr><Id>EU</Id></Othr></OrgId></Id></OrgId></Fr><MsgDefIdr>auth.036.001.02</MsgDefIdr><CreDt>2021-01-17T07:02:02Z</CreDt></AppHdr></Hdr>` + "\n")
	bw.WriteString(`<Pyld><Document xmlns="` + InstrumentNamespace + `"><FinInstrmRptgRefDataDltaRpt>` + "\n")
	bw.WriteString(`<RptHdr><RptgNtty><NtlCmpntAuthrty>EU</NtlCmpntAuthrty></RptgNtty><RptgPrd><FrDtToDt><FrDt>2021-01-16</FrDt><ToDt>2021-01-16</ToDt></FrDtToDt></RptgPrd></RptHdr>` + "\n")

	for i := 0; i < n; i++ {
		writeRecord(bw, gen(i))
	}

	bw.WriteString("</FinInstrmRptgRefDataDltaRpt></Document></Pyld>\n</BizData>\n")
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, r InstrumentFixture) {
	kind := r.Kind
	if kind == "" {
		kind = "NewRcrd"
	}

	w.WriteString("<FinInstrm>")
	if !r.OmitRecordKind {
		w.WriteString("<" + kind + ">")
		if !r.OmitGeneralAttributes {
			w.WriteString("<FinInstrmGnlAttrbts>")
			writeLeaf(w, "Id", r.ID)
			writeLeaf(w, "FullNm", r.FullName)
			writeLeaf(w, "ShrtNm", "SHORT")
			writeLeaf(w, "ClssfctnTp", r.ClassificationType)
			if !r.OmitCurrency {
				writeLeaf(w, "NtnlCcy", r.Currency)
			}
			writeLeaf(w, "CmmdtyDerivInd", r.CommodityDerivativeIndicator)
			w.WriteString("</FinInstrmGnlAttrbts>")
		}
		if !r.OmitIssuer {
			writeLeaf(w, "Issr", r.Issuer)
		}
		w.WriteString("<TradgVnRltdAttrbts><Id>XFRA</Id></TradgVnRltdAttrbts>")
		w.WriteString("</" + kind + ">")
	}
	w.WriteString("</FinInstrm>\n")
}

func writeLeaf(w *bufio.Writer, name, value string) {
	w.WriteString("<" + name + ">")
	xml.EscapeText(w, []byte(value))
	w.WriteString("</" + name + ">")
}

// WriteDLTINSFile writes a generated document of n numbered records to dir
func WriteDLTINSFile(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "DLTINS_20210117_01of01.xml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	if err := WriteDLTINSDocument(f, n, NumberedInstrument); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// ZipEntry is one file of a generated archive
type ZipEntry struct {
	Name string
	Data []byte
}

// ZipArchive builds an archive holding entries in order
func ZipArchive(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// FeedDocument renders a Solr select response listing one doc per link
func FeedDocument(links ...string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<response>` + "\n")
	b.WriteString(`<lst name="responseHeader"><int name="status">0</int><int name="QTime">1</int></lst>` + "\n")
	fmt.Fprintf(&b, `<result name="response" numFound="%d" start="0">`+"\n", len(links))
	for i, link := range links {
		name := link[strings.LastIndex(link, "/")+1:]
		fileType := name
		if idx := strings.Index(name, "_"); idx > 0 {
			fileType = name[:idx]
		}
		b.WriteString("  <doc>\n")
		fmt.Fprintf(&b, "    <str name=\"checksum\">%032d</str>\n", i)
		b.WriteString("    <str name=\"download_link\">")
		xml.EscapeText(&b, []byte(link))
		b.WriteString("</str>\n")
		fmt.Fprintf(&b, "    <str name=\"publication_date\">2021-01-17T00:00:00Z</str>\n")
		b.WriteString("    <str name=\"file_name\">")
		xml.EscapeText(&b, []byte(name))
		b.WriteString("</str>\n")
		fmt.Fprintf(&b, "    <str name=\"file_type\">%s</str>\n", fileType)
		b.WriteString("  </doc>\n")
	}
	b.WriteString("</result>\n</response>\n")
	return []byte(b.String())
}
