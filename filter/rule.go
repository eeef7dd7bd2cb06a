package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Rules 是推荐结果的排除规则集，使用 CEL (Common Expression Language) 表达式。
// CEL 是 Google 开发的表达式语言，类型安全、高性能、线程安全。
//
// 表达式可用变量：
//   - item: string，候选物品 ID
//   - user: string，目标用户 ID
//   - rank: int，候选在列表中的位置（0 起）
//
// 任一规则求值为 true 的物品会被从结果中剔除。
//
// 示例：
//   - `item.startsWith("promo:")` → 剔除运营位物品
//   - `user == "qa-bot" && rank > 2` → 压测账号只留前三
//
// 表达式在构造时编译一次并缓存，Apply 可并发调用。
type Rules struct {
	programs []cel.Program
}

// New 编译一组 CEL 排除规则。任何一条编译失败都返回错误。
// exprs 为空时返回 nil，表示不做过滤。
func New(exprs []string) (*Rules, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("item", cel.StringType),
		cel.Variable("user", cel.StringType),
		cel.Variable("rank", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	programs := make([]cel.Program, 0, len(exprs))
	for _, expr := range exprs {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", expr, err)
		}
		programs = append(programs, prg)
	}
	return &Rules{programs: programs}, nil
}

// Apply 按规则过滤推荐列表，保持原有顺序。
// 求值出错的规则按"不剔除"处理（fail-open），过滤不应让请求失败。
// r 为 nil 时原样返回。
func (r *Rules) Apply(userID string, items []string) []string {
	if r == nil || len(r.programs) == 0 || len(items) == 0 {
		return items
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		if !r.excluded(userID, item, i) {
			out = append(out, item)
		}
	}
	return out
}

func (r *Rules) excluded(userID, item string, rank int) bool {
	input := map[string]any{
		"item": item,
		"user": userID,
		"rank": rank,
	}
	for _, prg := range r.programs {
		val, _, err := prg.Eval(input)
		if err != nil {
			continue
		}
		if b, ok := val.Value().(bool); ok && b {
			return true
		}
	}
	return false
}
