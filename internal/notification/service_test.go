package notification

import (
	"testing"
	"time"

	authdomain "eventscout-backend/internal/auth/domain"
	"eventscout-backend/internal/pipeline/queue"
)

type fakeUserRepo struct {
	user *authdomain.User
}

func (f *fakeUserRepo) FindByID(id string) (*authdomain.User, error) { return f.user, nil }

func (f *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) List() ([]*authdomain.User, error) { return nil, nil }

func (f *fakeUserRepo) Update(u *authdomain.User) error { return nil }

func (f *fakeUserRepo) UpdateTokens(userID, accessToken, refreshToken string, expiry *time.Time) error {
	return nil
}

type fakeQueue struct {
	jobs []queue.Job
}

func (f *fakeQueue) Enqueue(job queue.Job) bool {
	f.jobs = append(f.jobs, job)
	return true
}

func newTestService(repo *fakeUserRepo, jobs *fakeQueue) *Service {
	return &Service{
		userRepo:      repo,
		jobs:          jobs,
		maxResults:    10,
		lastHistoryID: make(map[string]uint64),
	}
}

func TestHandleMessageEnqueuesSync(t *testing.T) {
	jobs := &fakeQueue{}
	s := newTestService(&fakeUserRepo{user: &authdomain.User{ID: "u1", Email: "u1@example.com"}}, jobs)

	s.handleMessage([]byte(`{"emailAddress": "u1@example.com", "historyId": 42}`))

	if len(jobs.jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.Kind != queue.KindSyncInbox || job.UserID != "u1" || job.MaxResults != 10 {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestHandleMessageDedupsByHistoryID(t *testing.T) {
	jobs := &fakeQueue{}
	s := newTestService(&fakeUserRepo{user: &authdomain.User{ID: "u1", Email: "u1@example.com"}}, jobs)

	s.handleMessage([]byte(`{"emailAddress": "u1@example.com", "historyId": 42}`))
	s.handleMessage([]byte(`{"emailAddress": "u1@example.com", "historyId": 42}`))
	s.handleMessage([]byte(`{"emailAddress": "u1@example.com", "historyId": 41}`))
	s.handleMessage([]byte(`{"emailAddress": "u1@example.com", "historyId": 43}`))

	if len(jobs.jobs) != 2 {
		t.Errorf("got %d jobs, want 2 (historyIds 42 and 43)", len(jobs.jobs))
	}
}

func TestHandleMessageIgnoresUnknownUserAndGarbage(t *testing.T) {
	jobs := &fakeQueue{}
	s := newTestService(&fakeUserRepo{}, jobs)

	s.handleMessage([]byte(`{"emailAddress": "stranger@example.com", "historyId": 1}`))
	s.handleMessage([]byte(`not json`))

	if len(jobs.jobs) != 0 {
		t.Errorf("got %d jobs, want 0", len(jobs.jobs))
	}
}
