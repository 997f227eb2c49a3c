package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVendorTable_Match(t *testing.T) {
	table := DefaultVendorTable()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lotame域名", "https://tags.crwdcntrl.net/c/123/cc.js", []string{"lotame"}},
		{"大写签名", "HTTPS://STATIC.CHARTBEAT.COM/js/chartbeat.js", []string{"chartbeat"}},
		{"vdo.ai", "//a.vdo.ai/core/v-site/vdo.ai.js", []string{"vdo_io"}},
		{"多个厂商", "izooto lotame", []string{"izooto", "lotame"}},
		{"无命中", "https://www.googletagmanager.com/gtm.js", nil},
		{"空字符串", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Match(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Match()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewVendorTable_Overrides(t *testing.T) {
	table, err := NewVendorTable(map[string][]string{
		"Taboola":   {" CDN.Taboola.com ", ""},
		"chartbeat": {"cb-only"},
	})
	if err != nil {
		t.Fatalf("NewVendorTable() error = %v", err)
	}

	if got := table.Match("https://cdn.taboola.com/libtrc/x.js"); len(got) != 1 || got[0] != "taboola" {
		t.Errorf("新增厂商未生效: %v", got)
	}
	if got := table.Match("https://static.chartbeat.com/x.js"); len(got) != 0 {
		t.Errorf("覆盖的签名不应再命中旧值: %v", got)
	}
	if len(table.Vendors()) != 5 {
		t.Errorf("Vendors() = %v", table.Vendors())
	}

	sigs := table.Signatures("taboola")
	sigs[0] = "changed"
	if table.Signatures("taboola")[0] != "cdn.taboola.com" {
		t.Error("Signatures() 应返回副本")
	}

	t.Run("空签名列表", func(t *testing.T) {
		if _, err := NewVendorTable(map[string][]string{"x": {" "}}); err == nil {
			t.Error("期望错误")
		}
	})
	t.Run("与结果字段重名", func(t *testing.T) {
		for _, name := range []string{"title", "Canonical", "status_code", "url", "Status Code", "taboola_widget"} {
			if _, err := NewVendorTable(map[string][]string{name: {"example-cdn"}}); err == nil {
				t.Errorf("厂商名 %q 应被拒绝", name)
			}
		}
	})
	t.Run("空厂商名", func(t *testing.T) {
		if _, err := NewVendorTable(map[string][]string{" ": {"a"}}); err == nil {
			t.Error("期望错误")
		}
	})
}

func TestHeaderConfigLoader_GeneratesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "headers.yaml")
	loader := NewHeaderConfigLoader(path)

	cfg, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("模板文件未生成: %v", err)
	}
	if len(cfg.UserAgents) != len(DefaultUserAgents()) {
		t.Errorf("UserAgents = %d, want %d", len(cfg.UserAgents), len(DefaultUserAgents()))
	}
	if cfg.Headers == nil {
		t.Error("Headers 不应为nil")
	}
}

func TestHeaderConfigLoader_EmptyUserAgents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.yaml")
	content := "headers:\n  Referer: \"https://www.google.com/\"\nuser_agents:\n  - \"  \"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewHeaderConfigLoader(path).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.UserAgents) != len(DefaultUserAgents()) {
		t.Errorf("空白UA应回退到内置列表: %v", cfg.UserAgents)
	}
	if len(cfg.Headers) != 1 {
		t.Errorf("Headers = %v", cfg.Headers)
	}
}

func TestHeaderConfigLoader_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.yaml")
	if err := os.WriteFile(path, make([]byte, MaxConfigFileSize+1), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewHeaderConfigLoader(path).LoadConfig(); err == nil {
		t.Error("超大配置文件应返回错误")
	}
}
