package recommend

import (
	"math"
	"sort"

	"github.com/rushteam/recserve/core"
)

// normEpsilon 是余弦相似度分母的下限，避免零向量除零。
const normEpsilon = 1e-9

// Engine 是基于用户的协同过滤推荐引擎（User-based Collaborative Filtering）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 算法流程：
//  1. 评分三元组 → 稠密 用户×物品 矩阵（见 Build）
//  2. 计算目标用户与所有用户的余弦相似度
//  3. 相似度加权求和得到物品得分：score[i] = Σ_v sim(target, v) · rating[v][i]
//  4. 目标用户已评分的物品强制排除（得分置 -Inf 哨兵）
//  5. 按得分降序取 TopK，得分相同按物品下标升序（稳定、可复现）
//
// 注意：加权求和包含目标用户自身（自相似度为 1），这是沿用的既定行为，
// 不做去自身修正；已评分物品无论如何不会出现在结果里。
//
// 冷启动：目标用户不在矩阵中时退化为全局热门（见 MostPopular）。
//
// Recommend 对所有输入都是全函数：空评分、未知用户、topK <= 0
// 一律返回空列表，从不报错。Engine 无状态，可并发使用。
type Engine struct{}

// NewEngine 创建推荐引擎。
func NewEngine() *Engine {
	return &Engine{}
}

// Recommend 为目标用户计算 TopK 推荐列表。
// 结果不包含目标用户已评分（评分 > 0）的物品，长度 <= topK。
func (e *Engine) Recommend(targetUser string, ratings []core.Rating, topK int) []string {
	if topK <= 0 || len(ratings) == 0 {
		return nil
	}

	m := Build(ratings)

	uIdx, ok := m.Users[targetUser]
	if !ok {
		// 冷启动：无行为记录的用户直接走热门兜底
		return MostPopular(ratings, topK)
	}

	sims := e.similarities(m, uIdx)

	// 相似度加权求和：score[i] = Σ_v sim[v] * rating[v][i]
	scores := make([]float64, len(m.ItemIDs))
	for v, row := range m.Rows {
		s := sims[v]
		if s == 0 {
			continue
		}
		for i, r := range row {
			if r > 0 {
				scores[i] += s * r
			}
		}
	}

	// 已评分物品强制排除
	for i, r := range m.Rows[uIdx] {
		if r > 0 {
			scores[i] = math.Inf(-1)
		}
	}

	return topKByScore(scores, m.ItemIDs, topK)
}

// similarities 计算目标用户与每个用户（含自身）的余弦相似度向量。
// 范数为 0 时钳到 normEpsilon；能进到这里的目标用户必有评分，
// 但其他用户行理论上可能全零，不允许除零崩溃。
func (e *Engine) similarities(m *Matrix, uIdx int) []float64 {
	target := m.Rows[uIdx]
	targetNorm := vectorNorm(target)
	if targetNorm == 0 {
		targetNorm = normEpsilon
	}

	sims := make([]float64, len(m.Rows))
	for v, row := range m.Rows {
		var dot float64
		for i, r := range row {
			dot += target[i] * r
		}
		norm := vectorNorm(row)
		if norm == 0 {
			norm = normEpsilon
		}
		sims[v] = dot / (targetNorm * norm)
	}
	return sims
}

// topKByScore 按得分降序取前 topK 个物品 ID，跳过 -Inf 哨兵。
// 同分按物品下标升序，保证结果确定。
func topKByScore(scores []float64, itemIDs []string, topK int) []string {
	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if !math.IsInf(s, -1) {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return idx[a] < idx[b]
	})

	if topK > len(idx) {
		topK = len(idx)
	}
	if topK == 0 {
		return nil
	}
	out := make([]string, 0, topK)
	for _, i := range idx[:topK] {
		out = append(out, itemIDs[i])
	}
	return out
}

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
