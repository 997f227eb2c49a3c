package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/RecoveryAshes/SeoScan/internal/models"
)

// ReadURLsFromFile 从文件中读取目标URL列表
func ReadURLsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls, err := ReadURLs(file)
	if err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	Infof("从文件 %s 加载了 %d 个URL", filepath, len(urls))
	return urls, nil
}

// ReadURLs 逐行读取URL
// 空行和#注释跳过,非http(s)开头的行记录警告后跳过
// 不做去重和规范化,原样保留顺序
func ReadURLs(r io.Reader) ([]string, error) {
	urls := make([]string, 0)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !models.HasHTTPPrefix(line) {
			Warnf("跳过无效URL (行 %d): %s", lineNum, line)
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
