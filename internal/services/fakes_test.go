package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/models"
	"agroguard/internal/repositories"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return nil, repositories.ErrDuplicate
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	r.users[user.Email] = &cp
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) CountAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeOTPRepo struct {
	otps []models.OTP
}

func (r *fakeOTPRepo) Replace(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	kept := r.otps[:0]
	for _, o := range r.otps {
		if o.Email != otp.Email {
			kept = append(kept, o)
		}
	}
	otp.ID = primitive.NewObjectID()
	r.otps = append(kept, *otp)
	return otp, nil
}

func (r *fakeOTPRepo) FindValid(ctx context.Context, email, code string, now time.Time) (*models.OTP, error) {
	for _, o := range r.otps {
		if o.Email == email && o.Code == code && !o.Expired(now) {
			cp := o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOTPRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	kept := r.otps[:0]
	for _, o := range r.otps {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	r.otps = kept
	return nil
}

func (r *fakeOTPRepo) CountByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	for _, o := range r.otps {
		if o.Email == email {
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) codeFor(email string) string {
	for _, o := range r.otps {
		if o.Email == email {
			return o.Code
		}
	}
	return ""
}

type fakeMailer struct {
	err     error
	otps    map[string]string
	welcome []string
}

func newFakeMailer(err error) *fakeMailer {
	return &fakeMailer{err: err, otps: map[string]string{}}
}

func (m *fakeMailer) SendOTPEmail(to, otp string) error {
	if m.err != nil {
		return m.err
	}
	m.otps[to] = otp
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(to, name string) error {
	if m.err != nil {
		return m.err
	}
	m.welcome = append(m.welcome, to)
	return nil
}

// fakeCropRepo and fakePestRepo keep documents in insertion order and apply
// $set fields by their bson names.
type fakeCropRepo struct {
	crops []*models.Crop
}

func (r *fakeCropRepo) Create(ctx context.Context, c *models.Crop) (*models.Crop, error) {
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now()
	if c.CommonPests == nil {
		c.CommonPests = []primitive.ObjectID{}
	}
	r.crops = append(r.crops, c)
	cp := *c
	return &cp, nil
}

func (r *fakeCropRepo) FindAll(ctx context.Context) ([]models.Crop, error) {
	out := []models.Crop{}
	for _, c := range r.crops {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCropRepo) FindByCategory(ctx context.Context, category string) ([]models.Crop, error) {
	out := []models.Crop{}
	for _, c := range r.crops {
		if c.Category == category {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCropRepo) find(id primitive.ObjectID) *models.Crop {
	for _, c := range r.crops {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *fakeCropRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	if c := r.find(id); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeCropRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error) {
	out := []models.Crop{}
	for _, id := range ids {
		if c := r.find(id); c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCropRepo) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Crop, error) {
	c := r.find(id)
	if c == nil {
		return nil, nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			c.Name = v.(string)
		case "category":
			c.Category = v.(string)
		case "description":
			c.Description = v.(string)
		case "image":
			c.Image = v.(string)
		case "common_pests":
			c.CommonPests = v.([]primitive.ObjectID)
		}
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCropRepo) Delete(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	for i, c := range r.crops {
		if c.ID == id {
			r.crops = append(r.crops[:i], r.crops[i+1:]...)
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCropRepo) AddPest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) error {
	for _, id := range cropIDs {
		if c := r.find(id); c != nil && !containsID(c.CommonPests, pestID) {
			c.CommonPests = append(c.CommonPests, pestID)
		}
	}
	return nil
}

func (r *fakeCropRepo) RemovePest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) error {
	for _, c := range r.crops {
		if cropIDs != nil && !containsID(cropIDs, c.ID) {
			continue
		}
		c.CommonPests = withoutID(c.CommonPests, pestID)
	}
	return nil
}

func (r *fakeCropRepo) DeleteAll(ctx context.Context) error {
	r.crops = nil
	return nil
}

type fakePestRepo struct {
	pests []*models.Pest
}

func (r *fakePestRepo) Create(ctx context.Context, p *models.Pest) (*models.Pest, error) {
	p.ID = primitive.NewObjectID()
	p.CreatedAt = time.Now()
	if p.AffectedCrops == nil {
		p.AffectedCrops = []primitive.ObjectID{}
	}
	r.pests = append(r.pests, p)
	cp := *p
	return &cp, nil
}

func (r *fakePestRepo) FindAll(ctx context.Context) ([]models.Pest, error) {
	out := []models.Pest{}
	for _, p := range r.pests {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePestRepo) find(id primitive.ObjectID) *models.Pest {
	for _, p := range r.pests {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *fakePestRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Pest, error) {
	if p := r.find(id); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePestRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Pest, error) {
	out := []models.Pest{}
	for _, id := range ids {
		if p := r.find(id); p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePestRepo) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Pest, error) {
	p := r.find(id)
	if p == nil {
		return nil, nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name = v.(string)
		case "scientific_name":
			p.ScientificName = v.(string)
		case "description":
			p.Description = v.(string)
		case "symptoms":
			p.Symptoms = v.([]string)
		case "management":
			p.Management = v.(string)
		case "images":
			p.Images = v.([]string)
		case "affected_crops":
			p.AffectedCrops = v.([]primitive.ObjectID)
		}
	}
	cp := *p
	return &cp, nil
}

func (r *fakePestRepo) Delete(ctx context.Context, id primitive.ObjectID) (*models.Pest, error) {
	for i, p := range r.pests {
		if p.ID == id {
			r.pests = append(r.pests[:i], r.pests[i+1:]...)
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePestRepo) AddCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) error {
	for _, id := range pestIDs {
		if p := r.find(id); p != nil && !containsID(p.AffectedCrops, cropID) {
			p.AffectedCrops = append(p.AffectedCrops, cropID)
		}
	}
	return nil
}

func (r *fakePestRepo) RemoveCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) error {
	for _, p := range r.pests {
		if pestIDs != nil && !containsID(pestIDs, p.ID) {
			continue
		}
		p.AffectedCrops = withoutID(p.AffectedCrops, cropID)
	}
	return nil
}

func (r *fakePestRepo) DeleteAll(ctx context.Context) error {
	r.pests = nil
	return nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func withoutID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := []primitive.ObjectID{}
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

type fakeFeedbackRepo struct {
	items      []models.Feedback
	lastFilter models.FeedbackFilter
	total      int64
	stats      *models.FeedbackStatistics
}

func (r *fakeFeedbackRepo) Create(ctx context.Context, fb *models.Feedback) (*models.Feedback, error) {
	fb.ID = primitive.NewObjectID()
	fb.CreatedAt = time.Now()
	fb.UpdatedAt = fb.CreatedAt
	r.items = append(r.items, *fb)
	return fb, nil
}

func (r *fakeFeedbackRepo) List(ctx context.Context, f models.FeedbackFilter) ([]models.Feedback, int64, error) {
	r.lastFilter = f
	return r.items, r.total, nil
}

func (r *fakeFeedbackRepo) Statistics(ctx context.Context, f models.FeedbackFilter) (*models.FeedbackStatistics, error) {
	if r.stats == nil {
		return &models.FeedbackStatistics{}, nil
	}
	return r.stats, nil
}

func (r *fakeFeedbackRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Feedback, error) {
	for i := range r.items {
		if r.items[i].ID == id {
			cp := r.items[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeFeedbackRepo) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Feedback, error) {
	for i := range r.items {
		if r.items[i].ID != id {
			continue
		}
		if v, ok := fields["status"]; ok {
			r.items[i].Status = v.(models.FeedbackStatus)
		}
		if v, ok := fields["admin_response"]; ok {
			r.items[i].AdminResponse = v.(string)
		}
		r.items[i].UpdatedAt = time.Now()
		cp := r.items[i]
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeFeedbackRepo) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeFeedbackRepo) Summary(ctx context.Context) (*models.FeedbackSummary, error) {
	return &models.FeedbackSummary{Total: int64(len(r.items))}, nil
}
