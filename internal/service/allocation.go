// Package service 提供业务逻辑层
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/paichuang/paichuang/internal/config"
	"github.com/paichuang/paichuang/internal/database"
	"github.com/paichuang/paichuang/internal/metrics"
	"github.com/paichuang/paichuang/internal/repository"
	"github.com/paichuang/paichuang/pkg/allocator"
	"github.com/paichuang/paichuang/pkg/errors"
	"github.com/paichuang/paichuang/pkg/model"
	"github.com/paichuang/paichuang/pkg/rules"
	"github.com/paichuang/paichuang/pkg/stats"
	"github.com/paichuang/paichuang/pkg/validator"
)

// AllocationService 床位分配服务
type AllocationService struct {
	db        *database.DB
	patients  *repository.PatientRepository
	beds      *repository.BedRepository
	admits    *repository.AdmissionRepository
	queue     *repository.QueueRepository
	policies  *repository.PolicyRepository
	evaluator *rules.Evaluator
	detector  *validator.ConflictDetector
	locks     *allocator.OwnerLocks
	notifier  allocator.Notifier
	cfg       config.AllocatorConfig
}

// NewAllocationService 创建分配服务
func NewAllocationService(
	db *database.DB,
	notifier allocator.Notifier,
	cfg config.AllocatorConfig,
) *AllocationService {
	return &AllocationService{
		db:        db,
		patients:  repository.NewPatientRepository(db),
		beds:      repository.NewBedRepository(db),
		admits:    repository.NewAdmissionRepository(db),
		queue:     repository.NewQueueRepository(db),
		policies:  repository.NewPolicyRepository(db),
		evaluator: rules.NewEvaluator(),
		detector:  validator.NewConflictDetector(),
		locks:     allocator.NewOwnerLocks(),
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Locks 返回资源方锁集合（与紧急分配共享）
func (s *AllocationService) Locks() *allocator.OwnerLocks {
	return s.locks
}

// buildContext 加载资源方的等待患者和床位，构建分配上下文
// 占用中床位的初始可用时间取其在住记录的出院时间
func (s *AllocationService) buildContext(ctx context.Context, ownerID uuid.UUID) (*allocator.Context, error) {
	patients, err := s.patients.ListWaiting(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载等待患者失败")
	}

	beds, err := s.beds.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载床位失败")
	}

	now := time.Now()
	allocCtx := allocator.NewContext(ownerID, now)
	allocCtx.SetPatients(patients)
	allocCtx.SetBeds(beds)

	active, err := s.admits.ListActive(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载在住记录失败")
	}

	availability := make(map[uuid.UUID]time.Time, len(active))
	for _, adm := range active {
		if adm.DischargeTime.After(now) {
			availability[adm.BedID] = adm.DischargeTime
		}
	}
	allocCtx.SetAvailability(availability)

	return allocCtx, nil
}

// RunBaseline 运行基线排程（只读预览，不落库）
func (s *AllocationService) RunBaseline(ctx context.Context, ownerID uuid.UUID) (*allocator.Plan, error) {
	allocCtx, err := s.buildContext(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	scheduler := allocator.NewBaselineScheduler()
	plan, err := scheduler.Run(ctx, allocCtx)
	metrics.RecordAllocationRun("baseline", err == nil, durationOf(plan))
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// RunOptimized 运行优化排程
// commit 为真时在资源方锁保护下原子替换计划记录；锁被占用直接返回并发冲突
func (s *AllocationService) RunOptimized(ctx context.Context, ownerID uuid.UUID, seed int64, commit bool) (*allocator.Plan, error) {
	if commit {
		unlock, ok := s.locks.TryLock(ownerID)
		if !ok {
			return nil, errors.ConcurrencyConflict(ownerID.String())
		}
		defer unlock()
	}

	allocCtx, err := s.buildContext(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	opt := allocator.NewOptimizer(s.cfg.CommitIterations, seed)
	opt.SetWorkers(s.cfg.Workers)

	plan, err := opt.Run(ctx, allocCtx)
	metrics.RecordAllocationRun("optimized", err == nil, durationOf(plan))
	if err != nil {
		return nil, err
	}
	metrics.AddOptimizerTrials(plan.OptimizationRuns)

	if conflicts := s.detector.Detect(plan.Admissions); len(conflicts) > 0 {
		return nil, errors.New(errors.CodeInternal, "排程方案存在床位占用冲突").
			WithField("conflicts", len(conflicts))
	}

	if commit {
		err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
			return s.admits.BulkReplace(ctx, tx, ownerID, plan.Admissions)
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "排程结果落库失败")
		}
		metrics.SetPlanStats(ownerID.String(), plan.TotalWaitingHours, plan.AdmittedCount)
	}

	return plan, nil
}

// PredictWait 预测指定患者的等待时长
func (s *AllocationService) PredictWait(ctx context.Context, ownerID, patientID uuid.UUID, seed int64) (*allocator.Prediction, error) {
	allocCtx, err := s.buildContext(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	predictor := allocator.NewPredictor(s.cfg.PredictIterations, seed)
	prediction, err := predictor.Predict(ctx, allocCtx, patientID)
	if err != nil {
		return nil, err
	}

	metrics.RecordWaitPrediction(prediction.Confidence)
	return prediction, nil
}

// CalculatePriority 按激活策略计算患者的优先级分值和可用类别
func (s *AllocationService) CalculatePriority(ctx context.Context, ownerID, patientID uuid.UUID) (*rules.ScoreResult, error) {
	patient, policy, err := s.loadPatientAndPolicy(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}

	return s.evaluator.Score(patient, policy)
}

// AssignBed 按激活策略给出确定性的床位建议（不修改床位状态）
func (s *AllocationService) AssignBed(ctx context.Context, ownerID, patientID uuid.UUID) (*rules.AssignResult, error) {
	patient, policy, err := s.loadPatientAndPolicy(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}

	beds, err := s.beds.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载床位失败")
	}

	free := make([]*model.Bed, 0, len(beds))
	for _, b := range beds {
		if b.IsFree() {
			free = append(free, b)
		}
	}

	return s.evaluator.AssignDeterministic(patient, free, policy)
}

// WaitingStats 统计资源方计划记录的等待时长分布
func (s *AllocationService) WaitingStats(ctx context.Context, ownerID uuid.UUID) (*stats.Report, error) {
	filter := repository.DefaultListFilter().
		WithOwnerID(ownerID).
		WithStatus(model.AdmissionStatusPlanned).
		WithLimit(10000)
	admissions, _, err := s.admits.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载排程记录失败")
	}

	patientMap := make(map[string]*model.Patient, len(admissions))
	for _, adm := range admissions {
		if _, ok := patientMap[adm.PatientID.String()]; ok {
			continue
		}
		p, err := s.patients.GetByID(ctx, adm.PatientID)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "加载患者失败")
		}
		if p != nil {
			patientMap[adm.PatientID.String()] = p
		}
	}

	analyzer := stats.NewWaitingAnalyzer()
	return analyzer.Analyze(admissions, patientMap), nil
}

// loadPatientAndPolicy 加载患者与激活策略
func (s *AllocationService) loadPatientAndPolicy(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Patient, *model.Policy, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "加载患者失败")
	}
	if patient == nil || patient.OwnerID != ownerID {
		return nil, nil, errors.NotFound("患者", patientID.String())
	}

	policy, err := s.policies.GetActive(ctx, ownerID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "加载策略失败")
	}
	if policy == nil {
		return nil, nil, errors.ErrPolicyNotFound
	}

	return patient, policy, nil
}

func durationOf(plan *allocator.Plan) time.Duration {
	if plan == nil {
		return 0
	}
	return plan.Duration
}
