package promotion

import "math"

// Line は価格計算の入力明細
type Line struct {
	EventID         int64
	TicketClassName string
	UnitPrice       int64
	Quantity        int
}

// Base は明細の小計を返す
func (l Line) Base() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// LineResult は明細ごとの割引結果
type LineResult struct {
	Line
	Eligible bool
	Discount int64
	Total    int64
}

// Summary は注文全体の価格計算結果
// Total == TotalBeforeDiscount - TotalDiscount かつ Total >= 0
type Summary struct {
	TotalBeforeDiscount int64
	TotalDiscount       int64
	Total               int64
	Lines               []LineResult
}

// Calculate は明細とプロモーションから金額を計算する
// promo が nil の場合は割引なし。副作用を持たない
func Calculate(lines []Line, promo *Promotion) (Summary, error) {
	s := Summary{Lines: make([]LineResult, len(lines))}
	for i, l := range lines {
		s.Lines[i] = LineResult{Line: l, Total: l.Base()}
		s.TotalBeforeDiscount += l.Base()
	}
	s.Total = s.TotalBeforeDiscount
	if promo == nil {
		return s, nil
	}

	var (
		eligible    []int
		appliedBase int64
		eligibleQty int
	)
	for i, l := range lines {
		if !promo.AppliesToEvent(l.EventID) || !promo.AppliesToClass(l.TicketClassName) {
			continue
		}
		eligible = append(eligible, i)
		appliedBase += l.Base()
		eligibleQty += l.Quantity
	}
	if len(eligible) == 0 {
		return Summary{}, ErrPromotionNotApplicable
	}
	if promo.MinTickets > 0 && eligibleQty < promo.MinTickets {
		return Summary{}, ErrPromotionConditionsNotMet.WithDetails(map[string]any{
			"minTickets": promo.MinTickets,
			"tickets":    eligibleQty,
		})
	}

	for _, i := range eligible {
		s.Lines[i].Eligible = true
	}

	switch promo.DiscountType {
	case DiscountPercentage:
		total := roundHalfAway(float64(appliedBase) * clampPercent(promo.DiscountValue) / 100)
		distribute(s.Lines, eligible, appliedBase, total)
	case DiscountFixedAmount:
		// 定額はスコープによらず対象小計が上限。per_order_item は明細ごとの内訳を出すための配分
		value := int64(math.Max(0, promo.DiscountValue))
		distribute(s.Lines, eligible, appliedBase, minInt64(appliedBase, value))
	default:
		return Summary{}, ErrPromotionNotApplicable
	}

	for i := range s.Lines {
		s.Lines[i].Total = s.Lines[i].Base() - s.Lines[i].Discount
		s.TotalDiscount += s.Lines[i].Discount
	}
	if s.TotalDiscount > s.TotalBeforeDiscount {
		s.TotalDiscount = s.TotalBeforeDiscount
	}
	s.Total = s.TotalBeforeDiscount - s.TotalDiscount
	return s, nil
}

// distribute は割引総額を対象明細の小計比で配分する。
// 端数は最後の対象明細から順に、明細小計を超えない範囲で寄せる
func distribute(lines []LineResult, eligible []int, appliedBase, total int64) {
	if appliedBase == 0 || total == 0 {
		return
	}
	remaining := total
	for _, i := range eligible {
		share := total * lines[i].Base() / appliedBase
		lines[i].Discount = share
		remaining -= share
	}
	for n := len(eligible) - 1; n >= 0 && remaining > 0; n-- {
		i := eligible[n]
		add := minInt64(remaining, lines[i].Base()-lines[i].Discount)
		lines[i].Discount += add
		remaining -= add
	}
}

func clampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func roundHalfAway(v float64) int64 {
	return int64(math.Round(v))
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
