// Package model 定义了反馈系统使用的数据模型。
package model

import "fmt"

// Module 是可供反馈的系统模块，启动时载入，之后不再修改。
type Module struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Details     string   `json:"details"`
	Keywords    []string `json:"keywords"`
	// Color 与 Icon 仅供前端展示使用。
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// PlaceholderHint 返回反馈内容输入框的提示文字。
func (m Module) PlaceholderHint() string {
	hint := fmt.Sprintf("請針對 %s 提出具體意見...", m.Name)
	if len(m.Keywords) > 0 {
		hint += fmt.Sprintf("\n例如：建議在%s增加二次確認機制。", m.Keywords[0])
	}
	return hint
}

// modules 内容参照 ERP 需求规划书。
var modules = []Module{
	{
		ID:          "P-CIA",
		Name:        "P-CIA 設計智動化",
		Description: "技術護城河與自動估價核心",
		Details:     "CAD 圖檔解析、特徵提取估價、ECN 設計變更與紅屏硬攔截聯動。",
		Keywords:    []string{"四大金剛", "參數化報價", "BOM表自動化"},
		Color:       "blue",
		Icon:        "cpu",
	},
	{
		ID:          "P-MES",
		Name:        "P-MES 製造執行",
		Description: "工廠現場指揮中樞",
		Details:     "條碼化倉管、剩料資產化 (QR Code)、委外預警紅綠燈、機台聯網。",
		Keywords:    []string{"剩料回抵", "紅屏攔截", "條碼管理"},
		Color:       "emerald",
		Icon:        "wrench",
	},
	{
		ID:          "P-DTS",
		Name:        "P-DTS 動態追蹤",
		Description: "跨地域神經傳導系統",
		Details:     "案號生命週期管理、非同步交班、物流責任邊界拍照存證、防空趟機制。",
		Keywords:    []string{"案號管理", "物流追蹤", "地理圍欄"},
		Color:       "amber",
		Icon:        "truck",
	},
	{
		ID:          "P-FHR",
		Name:        "P-FHR 財務人資",
		Description: "大腦決策與信任中樞",
		Details:     "穿透式財報、三方核勾 (3-Way Matching)、雙軌制計薪 (點數分潤)、資金治理。",
		Keywords:    []string{"三方核勾", "穿透式看板", "真實毛利"},
		Color:       "violet",
		Icon:        "brain-circuit",
	},
	{
		ID:          "SALES_ASSIST",
		Name:        "業務助理模組",
		Description: "報價與接單前台",
		Details:     "四大金剛報價模型、智慧防護罩 (A/B/C)、毛利門檻監控、稅前稅後切換。",
		Keywords:    []string{"20分鐘報價", "利潤防護", "防呆機制"},
		Color:       "rose",
		Icon:        "file-text",
	},
	{
		ID:          "PROCUREMENT",
		Name:        "採購與通訊模組",
		Description: "供應鏈自動化",
		Details:     "LINE 模板自動生成、切口管理 (預付款)、折上折計算引擎、數位握手協議。",
		Keywords:    []string{"自動產單", "切口餘額", "數位證據"},
		Color:       "cyan",
		Icon:        "database",
	},
	{
		ID:          "SITE_OPS",
		Name:        "現場執行 App",
		Description: "最後一哩路交付",
		Details:     "師傅掃碼領料、完工拍照驗收、維修案 (E號) 關聯 PD 號、庫存安全水位預警。",
		Keywords:    []string{"行動領料", "維修閉環", "驗收單"},
		Color:       "orange",
		Icon:        "hard-hat",
	},
}

// Modules 返回全部模块的副本，调用方修改不会影响目录本身。
func Modules() []Module {
	out := make([]Module, len(modules))
	for i, m := range modules {
		m.Keywords = append([]string(nil), m.Keywords...)
		out[i] = m
	}
	return out
}

// FindModule 根据模块代码查找模块。
func FindModule(id string) (Module, bool) {
	for _, m := range modules {
		if m.ID == id {
			m.Keywords = append([]string(nil), m.Keywords...)
			return m, true
		}
	}
	return Module{}, false
}
