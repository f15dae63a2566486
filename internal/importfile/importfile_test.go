package importfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
)

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV_Basic(t *testing.T) {
	in := "Nombre,Correo,Moneda\nAcme,ventas@acme.com,Pesos\nBeta,info@beta.com,Dólares\n"

	s, err := ReadCSV(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Correo", "Moneda"}, s.Headers)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, []string{"Beta", "info@beta.com", "Dólares"}, s.Rows[1])
}

func TestReadCSV_StripsBOMAndSniffsSemicolon(t *testing.T) {
	in := "\ufeffMonto;Fecha\n1.500,00;15/03/2023\n"

	s, err := ReadCSV(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monto", "Fecha"}, s.Headers)
	assert.Equal(t, [][]string{{"1.500,00", "15/03/2023"}}, s.Rows)
}

func TestReadCSV_CommentLinesSkippedBeforeSniffing(t *testing.T) {
	in := "# generado, por, el, sistema, anterior\nNombre;Correo\n# fila omitida\n Ana ; ana@x.com \n"

	s, err := ReadCSV(context.Background(), strings.NewReader(in), Options{Comment: '#', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Correo"}, s.Headers)
	assert.Equal(t, [][]string{{"Ana", "ana@x.com"}}, s.Rows)
}

func TestReadCSV_Windows1252(t *testing.T) {
	// "Dólares" with ó encoded as 0xF3.
	in := []byte("Moneda\nD\xf3lares\n")

	s, err := ReadCSV(context.Background(), strings.NewReader(string(in)), Options{Charset: "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dólares"}, s.Column("Moneda"))
}

func TestReadCSV_UnknownCharset(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a\n1\n"), Options{Charset: "klingon-8"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestReadCSV_PadsShortRowsAndDropsBlank(t *testing.T) {
	in := "a,b,c\n1\n,,\n1,2,3,4\n"

	s, err := ReadCSV(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, []string{"1", "", ""}, s.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, s.Rows[1])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), Options{})
	require.Error(t, err)
}

func TestReadCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a\n1\n"), Options{})
	require.Error(t, err)
}

func TestSheet_DistinctValues(t *testing.T) {
	s := &Sheet{
		Headers: []string{"Moneda"},
		Rows:    [][]string{{"Pesos"}, {" Pesos "}, {""}, {"USD"}, {"Pesos"}},
	}
	assert.Equal(t, []string{"Pesos", "USD"}, s.DistinctValues("Moneda"))
	assert.Nil(t, s.DistinctValues("Missing"))
}

func TestRead_DispatchesByExtension(t *testing.T) {
	path := writeTestFile(t, "import.csv", []byte("Correo\na@b.com\n"))

	s, err := Read(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, s.Column("Correo"))

	_, err = Read(context.Background(), writeTestFile(t, "import.pdf", []byte("x")), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestRead_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Pagos": {
			{"", ""},
			{"Monto", "Billetera"},
			{"1500", "Caja chica"},
		},
	})

	s, err := Read(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monto", "Billetera"}, s.Headers)
	assert.Equal(t, [][]string{{"1500", "Caja chica"}}, s.Rows)
}

func TestRead_XLSXNamedSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Clientes": {{"Nombre"}, {"Acme"}},
		"Pagos":    {{"Monto"}, {"10"}},
	})

	s, err := Read(context.Background(), path, Options{Sheet: "Pagos"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monto"}, s.Headers)

	_, err = Read(context.Background(), path, Options{Sheet: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRead_XLSXDateCells(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pagos")
	require.NoError(t, err)

	header := sheet.AddRow()
	header.AddCell().SetString("Fecha")
	header.AddCell().SetString("Monto")
	for _, d := range []time.Time{
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	} {
		row := sheet.AddRow()
		row.AddCell().SetDate(d)
		row.AddCell().SetFloat(100)
	}
	path := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.Save(path))

	s, err := Read(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-05", "2024-03-15"}, s.Column("Fecha"))
	assert.Equal(t, []string{"100", "100"}, s.Column("Monto"))

	for i, want := range []string{"2024-03-05", "2024-03-15"} {
		assert.Equal(t, want, normalize.Key(model.KindDate, s.Rows[i][0]))
	}
}
