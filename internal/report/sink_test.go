package report

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeRows 打开目的地,必要时写表头,追加并保存
func writeRows(t *testing.T, sink Sink, header []string, rows ...[]string) []string {
	t.Helper()
	existing, err := sink.Prepare()
	if err != nil {
		t.Fatalf("Prepare() 错误: %v", err)
	}
	if len(existing) == 0 {
		if err := sink.WriteHeader(header); err != nil {
			t.Fatalf("WriteHeader() 错误: %v", err)
		}
	}
	for _, row := range rows {
		if err := sink.Append(row); err != nil {
			t.Fatalf("Append() 错误: %v", err)
		}
	}
	if err := sink.Save(); err != nil {
		t.Fatalf("Save() 错误: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() 错误: %v", err)
	}
	return existing
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")
	header := []string{"URL", "Title"}

	t.Run("新文件写入表头", func(t *testing.T) {
		existing := writeRows(t, NewCSVSink(path), header, []string{"https://a.com", "A, inc"})
		if existing != nil {
			t.Errorf("新文件不应有表头: %v", existing)
		}
	})

	t.Run("已有文件只追加", func(t *testing.T) {
		existing := writeRows(t, NewCSVSink(path), header, []string{"https://b.com", "B"})
		if !reflect.DeepEqual(existing, header) {
			t.Errorf("已有表头 = %v, 期望 %v", existing, header)
		}
	})

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取CSV失败: %v", err)
	}
	want := "URL,Title\nhttps://a.com,\"A, inc\"\nhttps://b.com,B\n"
	if string(content) != want {
		t.Errorf("CSV内容 = %q, 期望 %q", content, want)
	}
}

func TestCSVSink_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	existing := writeRows(t, NewCSVSink(path), []string{"URL"}, []string{"https://a.com"})
	if existing != nil {
		t.Errorf("空文件不应有表头: %v", existing)
	}
	content, _ := os.ReadFile(path)
	if strings.Count(string(content), "URL") != 1 {
		t.Errorf("表头应只写一次: %q", content)
	}
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	header := []string{"URL", "Title"}

	writeRows(t, NewXLSXSink(path, "SeoData"), header, []string{"https://a.com", "A"})
	existing := writeRows(t, NewXLSXSink(path, "SeoData"), header, []string{"https://b.com", "B"})
	if !reflect.DeepEqual(existing, header) {
		t.Errorf("已有表头 = %v, 期望 %v", existing, header)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("打开工作簿失败: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("SeoData")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	want := [][]string{header, {"https://a.com", "A"}, {"https://b.com", "B"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("工作表内容 = %v, 期望 %v", rows, want)
	}
	if f.GetSheetName(0) != "SeoData" {
		t.Errorf("默认工作表应被重命名, 实际 %s", f.GetSheetName(0))
	}
}

func TestXLSXSink_NewSheetInExistingWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	writeRows(t, NewXLSXSink(path, "First"), []string{"URL"}, []string{"https://a.com"})

	existing := writeRows(t, NewXLSXSink(path, "Second"), []string{"URL"}, []string{"https://b.com"})
	if existing != nil {
		t.Errorf("新工作表不应有表头: %v", existing)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("打开工作簿失败: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"First", "Second"}) {
		t.Errorf("工作表 = %v", got)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		format  string
		want    string
		wantErr bool
	}{
		{"按扩展名xlsx", "a.xlsx", "", "*report.XLSXSink", false},
		{"按扩展名csv", "a.CSV", "", "*report.CSVSink", false},
		{"显式格式优先", "a.xlsx", "csv", "*report.CSVSink", false},
		{"未知格式", "a.txt", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := Open(tt.path, tt.format, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() 错误 = %v", err)
			}
			if err == nil && reflect.TypeOf(sink).String() != tt.want {
				t.Errorf("类型 = %s, 期望 %s", reflect.TypeOf(sink), tt.want)
			}
		})
	}
}
