package accountbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/sift/internal/model"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoad_Workbook(t *testing.T) {
	data := workbook(t, [][]any{
		{"Descripción", "Código"},
		{"Compras de mercaderías", 600},
		{"Otros servicios", "629"},
		{"", ""},
		{"Duplicado", 600},
		{"Sin código", ""},
	})

	accounts, err := Load("plan.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, []model.Account{
		{Code: "600", Description: "Compras de mercaderías"},
		{Code: "629", Description: "Otros servicios"},
	}, accounts)
}

func TestLoad_CSV(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []model.Account
	}{
		{
			name: "comma with header",
			data: "code,description\n700,Ventas de mercaderías\n705,\"Prestaciones de servicios, varias\"\n",
			want: []model.Account{
				{Code: "700", Description: "Ventas de mercaderías"},
				{Code: "705", Description: "Prestaciones de servicios, varias"},
			},
		},
		{
			name: "semicolon without header",
			data: "\xef\xbb\xbf627;Publicidad y   propaganda\n\n628;Suministros\n",
			want: []model.Account{
				{Code: "627", Description: "Publicidad y propaganda"},
				{Code: "628", Description: "Suministros"},
			},
		},
		{
			name: "spanish header with extra columns",
			data: "Nivel;Cuenta;Nombre\n3;621;Arrendamientos\n3;622;Reparaciones\n",
			want: []model.Account{
				{Code: "621", Description: "Arrendamientos"},
				{Code: "622", Description: "Reparaciones"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts, err := Load("plan.csv", []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, accounts)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("plan.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load("plan.csv", []byte("code,description\n"))
	assert.ErrorIs(t, err, ErrNoAccounts)

	_, err = Load("plan.xlsx", []byte("not a zip"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Plan.CSV")
	require.NoError(t, os.WriteFile(path, []byte("602,Compras de otros aprovisionamientos\n"), 0600))

	accounts, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "602", accounts[0].Code)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
