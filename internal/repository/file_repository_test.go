package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/ashwinyue/report-insight/internal/model"
	"github.com/ashwinyue/report-insight/internal/testutil"
)

func newFileFixture(t *testing.T) (*Repositories, *model.FileRecord, *model.AnalysisJob) {
	t.Helper()
	repos := NewRepositories(testutil.NewTestDB(t))
	file := testutil.NewFileRecord("user-1", "user-1/a.png", model.CategoryImage)
	job := &model.AnalysisJob{Trigger: model.TriggerUpload}
	if err := repos.File.CreateWithJob(context.Background(), file, job); err != nil {
		t.Fatalf("CreateWithJob() error = %v", err)
	}
	return repos, file, job
}

func newInsight(file *model.FileRecord) *model.Insight {
	return &model.Insight{
		FileID:     file.ID,
		UserID:     file.UserID,
		Summary:    datatypes.NewJSONType(model.Bilingual{English: "ok", Urdu: "ٹھیک"}),
		Confidence: 80,
	}
}

func TestFileRepository_CreateWithJob(t *testing.T) {
	repos, file, job := newFileFixture(t)

	if file.ProcessingStatus != model.StatusPending {
		t.Errorf("ProcessingStatus = %s, want pending", file.ProcessingStatus)
	}
	if job.FileID != file.ID || job.UserID != "user-1" {
		t.Errorf("job not linked: %+v", job)
	}

	got, err := repos.Job.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobQueued {
		t.Errorf("job Status = %s, want queued", got.Status)
	}
}

func TestFileRepository_GetByIDForUser(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	if _, err := repos.File.GetByIDForUser(ctx, file.ID, "user-1"); err != nil {
		t.Errorf("owner lookup error = %v", err)
	}
	if _, err := repos.File.GetByIDForUser(ctx, file.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign lookup error = %v, want ErrNotFound", err)
	}
	if _, err := repos.File.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing lookup error = %v, want ErrNotFound", err)
	}
}

func TestFileRepository_ListByUser(t *testing.T) {
	repos, _, _ := newFileFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f := testutil.NewFileRecord("user-1", "user-1/x.png", model.CategoryImage)
		if err := repos.DB.Create(f).Error; err != nil {
			t.Fatal(err)
		}
	}
	other := testutil.NewFileRecord("user-2", "user-2/x.png", model.CategoryImage)
	if err := repos.DB.Create(other).Error; err != nil {
		t.Fatal(err)
	}

	files, total, err := repos.File.ListByUser(ctx, "user-1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(files) != 2 {
		t.Errorf("ListByUser() total=%d len=%d, want 4 and 2", total, len(files))
	}
	for _, f := range files {
		if f.UserID != "user-1" {
			t.Errorf("foreign file returned: %s", f.UserID)
		}
	}
}

func TestFileRepository_TransitionStatus(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	ok, err := repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing)
	if err != nil || !ok {
		t.Fatalf("pending→processing = %v, %v", ok, err)
	}
	// 第二次条件不满足
	ok, err = repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing)
	if err != nil || ok {
		t.Errorf("repeated transition = %v, %v; want false", ok, err)
	}

	ok, err = repos.File.MarkFailed(ctx, file.ID, "fetch timeout")
	if err != nil || !ok {
		t.Fatalf("MarkFailed() = %v, %v", ok, err)
	}
	got, _ := repos.File.GetByID(ctx, file.ID)
	if got.ProcessingStatus != model.StatusFailed || got.LastError != "fetch timeout" {
		t.Errorf("after MarkFailed: %s %q", got.ProcessingStatus, got.LastError)
	}
	if got.AnalysisAttempts != 1 {
		t.Errorf("AnalysisAttempts = %d, want 1", got.AnalysisAttempts)
	}

	ok, err = repos.File.TransitionStatus(ctx, file.ID, model.StatusFailed, model.StatusPending)
	if err != nil || !ok {
		t.Fatalf("failed→pending = %v, %v", ok, err)
	}
	got, _ = repos.File.GetByID(ctx, file.ID)
	if got.LastError != "" {
		t.Errorf("LastError should be cleared, got %q", got.LastError)
	}
}

func TestFileRepository_MarkFailedRequiresProcessing(t *testing.T) {
	repos, file, _ := newFileFixture(t)

	ok, err := repos.File.MarkFailed(context.Background(), file.ID, "boom")
	if err != nil || ok {
		t.Errorf("MarkFailed() on pending = %v, %v; want false", ok, err)
	}
}

func TestFileRepository_CompleteWithInsight(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	if _, err := repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing); err != nil {
		t.Fatal(err)
	}

	insight := newInsight(file)
	if err := repos.File.CompleteWithInsight(ctx, file.ID, insight); err != nil {
		t.Fatalf("CompleteWithInsight() error = %v", err)
	}

	got, _ := repos.File.GetByID(ctx, file.ID)
	if !got.IsProcessed() || *got.InsightID != insight.ID {
		t.Errorf("file not linked: status=%s insight=%v", got.ProcessingStatus, got.InsightID)
	}

	stored, err := repos.Insight.GetByFileID(ctx, file.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Summary.Data().English != "ok" {
		t.Errorf("Summary = %+v", stored.Summary.Data())
	}
}

func TestFileRepository_CompleteWithInsightConflict(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	// 文件仍为 pending，条件更新不命中，洞察应回滚
	err := repos.File.CompleteWithInsight(ctx, file.ID, newInsight(file))
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("error = %v, want ErrStatusConflict", err)
	}
	if _, err := repos.Insight.GetByFileID(ctx, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("insight should be rolled back, got err = %v", err)
	}
	got, _ := repos.File.GetByID(ctx, file.ID)
	if got.ProcessingStatus != model.StatusPending || got.InsightID != nil {
		t.Errorf("file changed: %s %v", got.ProcessingStatus, got.InsightID)
	}
}

func TestFileRepository_DeleteWithInsight(t *testing.T) {
	repos, file, job := newFileFixture(t)
	ctx := context.Background()

	repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing)
	if err := repos.File.CompleteWithInsight(ctx, file.ID, newInsight(file)); err != nil {
		t.Fatal(err)
	}

	if err := repos.File.DeleteWithInsight(ctx, file.ID); err != nil {
		t.Fatalf("DeleteWithInsight() error = %v", err)
	}
	if _, err := repos.File.GetByID(ctx, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("file still present: %v", err)
	}
	if _, err := repos.Insight.GetByFileID(ctx, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("insight still present: %v", err)
	}
	if _, err := repos.Job.GetByID(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("job still present: %v", err)
	}

	if err := repos.File.DeleteWithInsight(ctx, file.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestInsightRepository_MarkReviewed(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing)
	insight := newInsight(file)
	if err := repos.File.CompleteWithInsight(ctx, file.ID, insight); err != nil {
		t.Fatal(err)
	}

	got, err := repos.Insight.MarkReviewed(ctx, insight.ID, file.UserID, "looks fine", true)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsReviewed || got.ReviewedBy == nil || *got.ReviewedBy != file.UserID || got.ReviewedAt == nil {
		t.Errorf("review fields not set: %+v", got)
	}
	if got.ReviewNotes != "looks fine" || got.Confidence != 80 {
		t.Errorf("unexpected fields: notes=%q confidence=%d", got.ReviewNotes, got.Confidence)
	}

	got, err = repos.Insight.MarkReviewed(ctx, insight.ID, file.UserID, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsReviewed || got.ReviewedBy != nil || got.ReviewedAt != nil {
		t.Errorf("review fields not cleared: %+v", got)
	}

	if _, err := repos.Insight.MarkReviewed(ctx, "missing", file.UserID, "", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing insight error = %v, want ErrNotFound", err)
	}

	// 其他用户不能修改
	if _, err := repos.Insight.MarkReviewed(ctx, insight.ID, "intruder", "hijacked", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign review error = %v, want ErrNotFound", err)
	}
	stored, err := repos.Insight.GetByID(ctx, insight.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.IsReviewed || stored.ReviewNotes != "" {
		t.Errorf("foreign review changed insight: %+v", stored)
	}
}

func TestFileRepository_RequeueWithJob(t *testing.T) {
	repos, file, upload := newFileFixture(t)
	ctx := context.Background()

	admitted := 0
	admit := func(ctx context.Context) error {
		admitted++
		return nil
	}

	// 上传任务仍在排队
	err := repos.File.RequeueWithJob(ctx, file.ID, model.StatusPending, &model.AnalysisJob{UserID: file.UserID}, admit)
	if !errors.Is(err, ErrActiveJob) {
		t.Fatalf("requeue with queued job error = %v, want ErrActiveJob", err)
	}
	if admitted != 0 {
		t.Error("admit must not run when the job is rejected")
	}

	// 上传任务失败后重置
	repos.File.TransitionStatus(ctx, file.ID, model.StatusPending, model.StatusProcessing)
	repos.File.MarkFailed(ctx, file.ID, "model unavailable")
	claimed, _ := repos.Job.Claim(ctx, "w-1", time.Minute)
	if claimed == nil || claimed.ID != upload.ID {
		t.Fatalf("claim = %+v", claimed)
	}
	if err := repos.Job.Finish(ctx, claimed.ID, "w-1", model.JobFailed, "model unavailable"); err != nil {
		t.Fatal(err)
	}

	job := &model.AnalysisJob{UserID: file.UserID, Trigger: model.TriggerManual}
	if err := repos.File.RequeueWithJob(ctx, file.ID, model.StatusFailed, job, admit); err != nil {
		t.Fatalf("RequeueWithJob() error = %v", err)
	}
	got, _ := repos.File.GetByID(ctx, file.ID)
	if got.ProcessingStatus != model.StatusPending || got.LastError != "" {
		t.Errorf("file after requeue = %s %q", got.ProcessingStatus, got.LastError)
	}
	if job.FileID != file.ID || admitted != 1 {
		t.Errorf("job=%+v admitted=%d", job, admitted)
	}

	// 状态已被其他请求重置
	err = repos.File.RequeueWithJob(ctx, file.ID, model.StatusFailed, &model.AnalysisJob{UserID: file.UserID}, admit)
	if !errors.Is(err, ErrStatusConflict) {
		t.Errorf("stale requeue error = %v, want ErrStatusConflict", err)
	}
}

func TestFileRepository_RequeueWithJobRollsBackOnAdmitError(t *testing.T) {
	repos, file, _ := newFileFixture(t)
	ctx := context.Background()

	repos.DB.Model(&model.AnalysisJob{}).Where("file_id = ?", file.ID).Update("status", model.JobFailed)
	repos.DB.Model(&model.FileRecord{}).Where("id = ?", file.ID).Update("processing_status", model.StatusFailed)

	denied := errors.New("limit exceeded")
	err := repos.File.RequeueWithJob(ctx, file.ID, model.StatusFailed, &model.AnalysisJob{UserID: file.UserID},
		func(ctx context.Context) error { return denied })
	if !errors.Is(err, denied) {
		t.Fatalf("RequeueWithJob() error = %v, want admit error", err)
	}

	got, _ := repos.File.GetByID(ctx, file.ID)
	if got.ProcessingStatus != model.StatusFailed {
		t.Errorf("status = %s, want failed after rollback", got.ProcessingStatus)
	}
	if active, _ := repos.Job.HasActive(ctx, file.ID); active {
		t.Error("rolled back job is still queued")
	}
}
