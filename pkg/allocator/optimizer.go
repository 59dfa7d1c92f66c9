// Package allocator 提供床位分配算法
package allocator

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/logger"
	"github.com/paichuang/paichuang/pkg/model"
)

const (
	// DefaultCommitIterations 落库排程的默认试算次数
	DefaultCommitIterations = 30
	// DefaultPredictIterations 等待预测的默认试算次数
	DefaultPredictIterations = 20

	defaultWorkers = 4
)

// Optimizer 随机重启优化器
// 反复以扰动后的优先级键重跑基线放置，保留总等待最低的方案
type Optimizer struct {
	iterations int
	workers    int
	rng        *rand.Rand
	logger     *logger.AllocatorLogger
}

// NewOptimizer 创建优化器，seed 固定时结果可复现
func NewOptimizer(iterations int, seed int64) *Optimizer {
	if iterations <= 0 {
		iterations = DefaultCommitIterations
	}
	return &Optimizer{
		iterations: iterations,
		workers:    defaultWorkers,
		rng:        rand.New(rand.NewSource(seed)),
		logger:     logger.NewAllocatorLogger(),
	}
}

// Name 返回优化器名称
func (o *Optimizer) Name() string {
	return "RandomRestartOptimizer"
}

// SetWorkers 设置并行试算协程数
func (o *Optimizer) SetWorkers(n int) {
	if n > 0 {
		o.workers = n
	}
}

// Iterations 返回试算次数
func (o *Optimizer) Iterations() int {
	return o.iterations
}

// trialResult 单次试算结果
type trialResult struct {
	index        int
	admissions   []*model.Admission
	totalWaiting int
}

// Run 执行随机重启优化
// 每次试算独立重建可用时间表；各试算的子种子由主种子预先派生，
// 归并只取总等待最低（并列取序号最小）的一次，结果与协程调度顺序无关
func (o *Optimizer) Run(ctx context.Context, allocCtx *Context) (*Plan, error) {
	startTime := time.Now()

	if len(allocCtx.Patients) == 0 {
		return nil, errors.ErrNoPatients
	}
	if len(allocCtx.Beds) == 0 {
		return nil, errors.ErrNoBeds
	}

	o.logger.StartRun(allocCtx.OwnerID.String(), len(allocCtx.Patients), len(allocCtx.Beds))

	seeds := make([]int64, o.iterations)
	for i := range seeds {
		seeds[i] = o.rng.Int63()
	}

	jobs := make(chan int, o.iterations)
	results := make(chan trialResult, o.iterations)

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				admissions, totalWaiting := o.runTrial(allocCtx, seeds[idx])
				results <- trialResult{index: idx, admissions: admissions, totalWaiting: totalWaiting}
			}
		}()
	}

	for i := 0; i < o.iterations; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var best *trialResult
	collected := 0
	for result := range results {
		collected++
		r := result
		if best == nil ||
			r.totalWaiting < best.totalWaiting ||
			(r.totalWaiting == best.totalWaiting && r.index < best.index) {
			best = &r
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if best == nil || collected < o.iterations {
		return nil, errors.New(errors.CodeInternal, "优化试算未全部完成")
	}

	plan := &Plan{
		Admissions:        best.admissions,
		TotalWaitingHours: best.totalWaiting,
		OptimizationRuns:  o.iterations,
		Duration:          time.Since(startTime),
	}
	plan.finalize()

	o.logger.RunComplete(allocCtx.OwnerID.String(), plan.Duration, plan.AdmittedCount, plan.TotalWaitingHours)

	return plan, nil
}

// runTrial 用独立子种子执行一次试算
func (o *Optimizer) runTrial(allocCtx *Context, seed int64) ([]*model.Admission, int) {
	trialRng := rand.New(rand.NewSource(seed))
	ordered := randomPriorityOrder(trialRng, allocCtx.Patients)
	availability := allocCtx.cloneAvailability()
	admissions, totalWaiting, _ := placePatients(ordered, allocCtx.Beds, availability, allocCtx.OwnerID)
	return admissions, totalWaiting
}

// randomPriorityOrder 按随机化优先级分值降序排列患者
// 分值 = U(0,0.4) + 0.3*急诊 + 0.1*严重程度排序值，每次试算重新抽取
func randomPriorityOrder(rng *rand.Rand, patients []*model.Patient) []*model.Patient {
	type scoredPatient struct {
		patient *model.Patient
		score   float64
	}

	scored := make([]scoredPatient, len(patients))
	for i, p := range patients {
		score := rng.Float64() * 0.4
		if p.Emergency {
			score += 0.3
		}
		score += 0.1 * float64(p.SeverityRank())
		scored[i] = scoredPatient{patient: p, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	ordered := make([]*model.Patient, len(scored))
	for i, sp := range scored {
		ordered[i] = sp.patient
	}
	return ordered
}
