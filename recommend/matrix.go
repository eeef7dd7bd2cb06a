package recommend

import "github.com/rushteam/recserve/core"

// Matrix 是稠密的 用户×物品 评分矩阵及其索引映射。
//
// 约定：
//   - 行 = 用户，列 = 物品，均按首次出现顺序分配下标
//   - 单元格为评分，0 表示"未评分"（评分约定为正数，见 core.Rating）
//   - 矩阵归单次计算独占，构建后不再修改，也不跨请求共享
//   - 每次计算从评分全量重建，不做增量更新
type Matrix struct {
	// Rows 是评分矩阵本体：Rows[u][i] = 用户 u 对物品 i 的评分
	Rows [][]float64

	// Users 外部用户 ID -> 行下标
	Users map[string]int

	// Items 外部物品 ID -> 列下标
	Items map[string]int

	// UserIDs 行下标 -> 外部用户 ID（与 Users 互逆）
	UserIDs []string

	// ItemIDs 列下标 -> 外部物品 ID（与 Items 互逆）
	ItemIDs []string
}

// Build 把评分三元组列表构建为稠密矩阵。
//
// 语义：
//   - 下标按首次出现顺序分配，因此映射只在输入顺序稳定时可复现
//   - 同一 (user, item) 出现多次时后写覆盖先写
//   - 评分 <= 0 的记录视为不存在（0 是"未评分"哨兵值），跳过
//   - 空输入返回 0×0 矩阵，不报错
//
// 复杂度 O(N)，两趟扫描：第一趟建索引，第二趟填充。
func Build(ratings []core.Rating) *Matrix {
	m := &Matrix{
		Users: make(map[string]int),
		Items: make(map[string]int),
	}

	for _, r := range ratings {
		if r.Rating <= 0 {
			continue
		}
		if _, ok := m.Users[r.UserID]; !ok {
			m.Users[r.UserID] = len(m.UserIDs)
			m.UserIDs = append(m.UserIDs, r.UserID)
		}
		if _, ok := m.Items[r.ItemID]; !ok {
			m.Items[r.ItemID] = len(m.ItemIDs)
			m.ItemIDs = append(m.ItemIDs, r.ItemID)
		}
	}

	m.Rows = make([][]float64, len(m.UserIDs))
	for u := range m.Rows {
		m.Rows[u] = make([]float64, len(m.ItemIDs))
	}
	for _, r := range ratings {
		if r.Rating <= 0 {
			continue
		}
		m.Rows[m.Users[r.UserID]][m.Items[r.ItemID]] = r.Rating
	}
	return m
}
