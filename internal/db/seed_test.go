package db

import (
	"context"
	"testing"
)

func TestSeed(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// Seeding twice must not duplicate anything.
	for range 2 {
		if err := db.Seed(ctx); err != nil {
			t.Fatalf("Seed() failed: %v", err)
		}
	}

	activity, _ := db.RecentActivity(ctx, 10)
	if len(activity) != 2 || activity[1].Message != "Mission Control started" {
		t.Errorf("activity = %+v", activity)
	}

	projects, _ := db.ListProjects(ctx)
	if len(projects) != 1 || projects[0].Name != "Mission Control Dashboard" || projects[0].Progress != 10 {
		t.Errorf("projects = %+v", projects)
	}

	skills, _ := db.ListSkills(ctx)
	if len(skills) != len(defaultSkills) || skills[0].Name != "weather" {
		t.Errorf("skills = %+v", skills)
	}

	jobs, _ := db.ListCronJobs(ctx)
	if len(jobs) != 2 || jobs[1].Schedule != "*/5 * * * *" || jobs[1].NextRun == nil {
		t.Errorf("cron jobs = %+v", jobs)
	}

	channels, _ := db.ListChannels(ctx)
	if len(channels) != 2 || channels[0].ID != "telegram" || channels[1].LastSeen != nil {
		t.Errorf("channels = %+v", channels)
	}
}

func TestSeed_KeepsExistingRows(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if _, err := db.CreateProject(ctx, newProject("mine")); err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	if err := db.Seed(ctx); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	projects, _ := db.ListProjects(ctx)
	if len(projects) != 1 || projects[0].Name != "mine" {
		t.Errorf("projects = %+v, want only the existing project", projects)
	}
}
