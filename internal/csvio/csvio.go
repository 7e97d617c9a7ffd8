package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"mailverify/backend/internal/domain"
)

var (
	ErrNoData    = errors.New("csv has no data rows")
	ErrNoColumns = errors.New("csv has no columns")
)

// ParsedCSV 保存一次上传文件的解析结果。
//
// Emails 与 Rows 按输入顺序对齐，但邮箱列为空的行只保留在 Rows 中，
// 不会出现在 Emails 中，因此 len(Emails) <= len(Rows)。
type ParsedCSV struct {
	Headers         []string
	Rows            []map[string]string
	Emails          []string
	EmailColumnName string
}

// Parse 解析上传的 CSV 字节流。
//
// 规则：
//   - 第一行为表头，其余为数据行；空行跳过
//   - 所有单元格去除首尾空白
//   - 邮箱列由 emailColumnIndex 选定（越界时回退到第 0 列）
//   - 邮箱值统一转为小写
func Parse(data []byte, emailColumnIndex int) (*ParsedCSV, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	// 允许行与表头列数不一致，缺失的单元格按空串处理
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrNoData
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, strings.TrimSpace(h))
	}
	if len(headers) == 0 {
		return nil, ErrNoColumns
	}

	if emailColumnIndex < 0 || emailColumnIndex >= len(headers) {
		emailColumnIndex = 0
	}
	emailColumnName := headers[emailColumnIndex]

	rows := make([]map[string]string, 0, len(records)-1)
	emails := make([]string, 0, len(records)-1)

	for _, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}

		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)

		// 邮箱列为空的行不进入待验证列表，但原始行保留
		if value := row[emailColumnName]; value != "" {
			emails = append(emails, domain.NormalizeEmail(value))
		}
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}

	return &ParsedCSV{
		Headers:         headers,
		Rows:            rows,
		Emails:          emails,
		EmailColumnName: emailColumnName,
	}, nil
}

// ResultRow 导出 CSV 的一行。
type ResultRow struct {
	Email              string
	VerificationStatus string
}

// Generate 将验证结果序列化为 CSV 文本。
//
// 表头固定为 email,verification_status。
// 零行输入返回空字符串（连表头都不输出，保持参考实现行为）。
func Generate(rows []ResultRow) string {
	if len(rows) == 0 {
		return ""
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	_ = writer.Write([]string{"email", "verification_status"})
	for _, row := range rows {
		_ = writer.Write([]string{row.Email, row.VerificationStatus})
	}
	writer.Flush()

	return buf.String()
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
