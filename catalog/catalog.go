// Package catalog defines the commission types and their ordered status
// progressions. Everything here is static lookup data; the catalog carries no
// state and never fails.
package catalog

// Type identifies a commission product line. It selects both the status
// progression and the price schedule that apply to a record.
type Type string

const (
	TypeFlowingSand Type = "FLOWING_SAND"
	TypeScreenshot  Type = "SCREENSHOT"
)

// Step is one stage in a type-specific status progression. Index 0 is intake,
// the last index is the completed stage.
type Step struct {
	Label string
	Sub   string
}

var displayNames = map[Type]string{
	TypeFlowingSand: "流麻",
	TypeScreenshot:  "截圖委託",
}

var steps = map[Type][]Step{
	TypeFlowingSand: {
		{Label: "已接單", Sub: "已接單並討論需求"},
		{Label: "拍攝中", Sub: "正在拍攝流麻素材並進行圖面分層"},
		{Label: "檔案確認", Sub: "確認圖面沒有問題"},
		{Label: "等待素材到貨", Sub: "等待圖面送印與素材到貨"},
		{Label: "實體製作中", Sub: "努力照燈與調色"},
		{Label: "已完成", Sub: "流麻已完成並準備寄出"},
	},
	TypeScreenshot: {
		{Label: "已接單", Sub: "已接單並溝通指定外觀、色系"},
		{Label: "拍攝中", Sub: "正在開號拍攝期間"},
		{Label: "檔案確認", Sub: "確認初稿構圖外觀皆沒問題"},
		{Label: "修圖中", Sub: "正在進行調色與後期"},
		{Label: "已完稿", Sub: "檔案已完成並上傳雲端"},
	},
}

// Types lists the known commission types in a stable order.
func Types() []Type {
	return []Type{TypeFlowingSand, TypeScreenshot}
}

// Valid reports whether t is a known commission type.
func Valid(t Type) bool {
	_, ok := steps[t]
	return ok
}

// DisplayName returns the human-readable name for t, or the raw value for an
// unknown type.
func DisplayName(t Type) string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// Steps returns the ordered status progression for t. The returned slice is a
// copy; callers may not mutate catalog data. Unknown types yield nil.
func Steps(t Type) []Step {
	src, ok := steps[t]
	if !ok {
		return nil
	}
	out := make([]Step, len(src))
	copy(out, src)
	return out
}

// StepCount returns the number of status steps for t, zero for unknown types.
func StepCount(t Type) int {
	return len(steps[t])
}

// ValidStatus reports whether status indexes a step of t's progression.
func ValidStatus(t Type, status int) bool {
	return status >= 0 && status < len(steps[t])
}

// Percentage maps a status index to progress through t's progression, as
// (status+1)/len*100. Callers are responsible for passing an in-range status;
// the function is pure and does not guard the invariant.
func Percentage(t Type, status int) float64 {
	n := len(steps[t])
	if n == 0 {
		return 0
	}
	return float64(status+1) / float64(n) * 100
}
