package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
)

// table 以制表符对齐输出表格。
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
	t.row(headers...)
	return t
}

func (t *table) row(cols ...string) {
	_, _ = fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error { return t.tw.Flush() }

func statusText(status int) string {
	if status == xadmin.StatusDisabled {
		return "停用"
	}
	return "正常"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// =============================================================================
// 树
// =============================================================================

func printDeptTree(w io.Writer, nodes []xadmin.DeptVO, depth int) {
	for _, d := range nodes {
		line := fmt.Sprintf("%s%s [%d]", indent(depth), d.DeptName, d.ID)
		if d.Leader != "" {
			line += " 负责人:" + d.Leader
		}
		if d.Status == xadmin.StatusDisabled {
			line += " (停用)"
		}
		_, _ = fmt.Fprintln(w, line)
		printDeptTree(w, d.Children, depth+1)
	}
}

func printMenuTree(w io.Writer, nodes []xadmin.MenuVO, depth int) {
	for _, m := range nodes {
		line := fmt.Sprintf("%s%s [%d] %s", indent(depth), m.MenuName, m.ID, menuTypeText(m.MenuType))
		if m.Path != "" {
			line += " " + m.Path
		}
		if m.Perms != "" {
			line += " " + m.Perms
		}
		if m.Status == xadmin.StatusDisabled {
			line += " (停用)"
		}
		_, _ = fmt.Fprintln(w, line)
		printMenuTree(w, m.Children, depth+1)
	}
}

func menuTypeText(t string) string {
	switch t {
	case xadmin.MenuTypeDirectory:
		return "目录"
	case xadmin.MenuTypeMenu:
		return "菜单"
	case xadmin.MenuTypeButton:
		return "按钮"
	default:
		return t
	}
}

func indent(depth int) string {
	if depth == 0 {
		return ""
	}
	return strings.Repeat("  ", depth-1) + "└─ "
}
