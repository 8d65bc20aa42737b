package lattice

import (
	"math"
	"sort"
)

// DefaultForward 单次行权机会覆盖的年化时长：一个交易日
const DefaultForward = 1.0 / 252

// ExerciseWindow 允许提前行权的层编号集合 (升序、去重)
type ExerciseWindow struct {
	levels []int
}

// Contains 第 i 层是否允许行权
func (w ExerciseWindow) Contains(i int) bool {
	k := sort.SearchInts(w.levels, i)
	return k < len(w.levels) && w.levels[k] == i
}

// Len 集合大小
func (w ExerciseWindow) Len() int { return len(w.levels) }

// Empty 空集合时 Bermuda 退化为 European
func (w ExerciseWindow) Empty() bool { return len(w.levels) == 0 }

// Levels 返回层编号副本
func (w ExerciseWindow) Levels() []int {
	out := make([]int, len(w.levels))
	copy(out, w.levels)
	return out
}

// mask 展开为长度 n 的布尔表，归纳时 O(1) 查询
func (w ExerciseWindow) mask(n int) []bool {
	m := make([]bool, n)
	for _, i := range w.levels {
		if i >= 0 && i < n {
			m[i] = true
		}
	}
	return m
}

// ScheduleExercise 把连续的行权时间映射到树的层编号
//
// 返回所有 i∈[0,n) 使得某个行权时间 t 满足 t-eps < i·dT <= t+fwd+eps。
// times 必须单调不减；网格指针和行权时间指针各自单向前进，复杂度 O(n+len(times))。
func ScheduleExercise(times []float64, dT float64, n int, fwd, eps float64) ExerciseWindow {
	var levels []int
	i, j := 0, 0
	for i < n && j < len(times) {
		pos := float64(i) * dT
		switch {
		case pos <= times[j]-eps:
			// 网格点还没到当前行权窗口
			i++
		case pos > times[j]+fwd+eps:
			// 网格点已越过当前窗口
			j++
		default:
			levels = append(levels, i)
			i++
		}
	}
	return ExerciseWindow{levels: levels}
}

// validateExerciseTimes 行权时间必须单调不减且落在 [0, T]
func validateExerciseTimes(times []float64, maturity float64) error {
	prev := math.Inf(-1)
	for k, t := range times {
		if math.IsNaN(t) || t < 0 || t > maturity {
			return domainErr("exercise_times", t, "must lie in [0, maturity]")
		}
		if t < prev {
			return domainErr("exercise_times", times[k-1:k+1], "must be non-decreasing")
		}
		prev = t
	}
	return nil
}
