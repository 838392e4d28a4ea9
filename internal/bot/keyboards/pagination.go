// Package keyboards 分页组件
package keyboards

import (
	"fmt"

	tele "gopkg.in/telebot.v3"
)

// 分页动作，回调数据为 "动作|页码"
const (
	ActionCodesPage = "codes_page"
	ActionSubsPage  = "subs_page"
)

// Pager 列表分页键盘
type Pager struct {
	Action  string // 回调动作
	Current int
	Pages   int
	Window  int // 同时显示的页码按钮数
	Jump    int // 快速翻页步长，0 表示不显示
}

// NewPager 创建分页器，当前页会被限制在有效范围内
func NewPager(action string, current, pages int) Pager {
	if pages < 1 {
		pages = 1
	}
	return Pager{
		Action:  action,
		Current: ClampPage(current, pages),
		Pages:   pages,
		Window:  5,
		Jump:    5,
	}
}

// ClampPage 把页码限制在 [1, pages]
func ClampPage(page, pages int) int {
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// TotalPages 计算总页数，空列表也算 1 页
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func (p Pager) data(page int) string {
	return fmt.Sprintf("%s|%d", p.Action, page)
}

// Markup 页码行 + 翻页行，extra 追加在最后；只有 1 页时只保留 extra
func (p Pager) Markup(extra ...tele.Row) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(append(p.rows(markup), extra...)...)
	return markup
}

func (p Pager) rows(markup *tele.ReplyMarkup) []tele.Row {
	if p.Pages <= 1 {
		return nil
	}

	var pageRow tele.Row
	start, end := p.window()
	for i := start; i <= end; i++ {
		if i == p.Current {
			pageRow = append(pageRow, markup.Data(fmt.Sprintf("·%d·", i), "noop"))
			continue
		}
		pageRow = append(pageRow, markup.Data(fmt.Sprintf("%d", i), p.data(i)))
	}

	var navRow tele.Row
	if p.Jump > 0 && p.Current > p.Jump {
		navRow = append(navRow, markup.Data(fmt.Sprintf("⏮️-%d", p.Jump), p.data(p.Current-p.Jump)))
	}
	if p.Current > 1 {
		navRow = append(navRow, markup.Data("◀️", p.data(p.Current-1)))
	}
	if p.Current < p.Pages {
		navRow = append(navRow, markup.Data("▶️", p.data(p.Current+1)))
	}
	if p.Jump > 0 && p.Current+p.Jump <= p.Pages {
		navRow = append(navRow, markup.Data(fmt.Sprintf("⏭️+%d", p.Jump), p.data(p.Current+p.Jump)))
	}

	return []tele.Row{pageRow, navRow}
}

// window 以当前页为中心的页码范围
func (p Pager) window() (start, end int) {
	size := p.Window
	if size <= 0 {
		size = 5
	}
	if size > p.Pages {
		size = p.Pages
	}

	start = p.Current - size/2
	if start < 1 {
		start = 1
	}
	end = start + size - 1
	if end > p.Pages {
		end = p.Pages
		start = end - size + 1
	}
	return start, end
}

func closeRow() tele.Row {
	return tele.Row{tele.Btn{Text: "❌ 关闭", Unique: "close"}}
}

// CodesPagination 可用订阅码分页键盘
func CodesPagination(page, pages int) *tele.ReplyMarkup {
	return NewPager(ActionCodesPage, page, pages).Markup(closeRow())
}

// SubscribersPagination 订阅者列表分页键盘
func SubscribersPagination(page, pages int) *tele.ReplyMarkup {
	return NewPager(ActionSubsPage, page, pages).Markup(closeRow())
}
