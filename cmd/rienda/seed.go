package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/db"
	"github.com/elpalenque/rienda/internal/directory"
	"github.com/elpalenque/rienda/internal/models"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the directories with a starter roster",
	Long:  "Insert a small set of students, instructors and horses so a fresh install can book lessons immediately. Safe to re-run; existing rows are kept.",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return err
	}

	ctx := context.Background()

	students := directory.NewStudents(database, logger)
	instructors := directory.NewInstructors(database, logger)
	horses := directory.NewHorses(database, logger)

	seeded := 0
	for _, s := range seedStudents {
		created, err := seedOne(database, &models.Student{}, "document_id = ?", s.DocumentID, func() error {
			return students.Create(ctx, s)
		})
		if err != nil {
			return err
		}
		if created {
			seeded++
		}
	}
	for _, i := range seedInstructors {
		created, err := seedOne(database, &models.Instructor{}, "document_id = ?", i.DocumentID, func() error {
			return instructors.Create(ctx, i)
		})
		if err != nil {
			return err
		}
		if created {
			seeded++
		}
	}
	for _, h := range seedHorses {
		created, err := seedOne(database, &models.Horse{}, "name = ?", h.Name, func() error {
			return horses.Create(ctx, h)
		})
		if err != nil {
			return err
		}
		if created {
			seeded++
		}
	}

	logger.Info().Int("created", seeded).Msg("seed finished")
	return nil
}

// seedOne inserts via create unless a row already matches the query.
func seedOne(database *gorm.DB, model any, query string, arg any, create func() error) (bool, error) {
	var count int64
	if err := database.Model(model).Where(query, arg).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	return true, create()
}

var seedStudents = []*models.Student{
	{
		PersonRecord: models.PersonRecord{DocumentID: "30111222", FirstName: "Ana", LastName: "Paz", BirthDate: time.Date(2010, 5, 14, 0, 0, 0, 0, time.UTC), Phone: "11-5550-0101"},
		EnrolledAt:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		LessonQuota:  8,
		Active:       true,
	},
	{
		PersonRecord: models.PersonRecord{DocumentID: "28999333", FirstName: "Bruno", LastName: "Sosa", BirthDate: time.Date(1998, 11, 2, 0, 0, 0, 0, time.UTC), Phone: "11-5550-0102"},
		EnrolledAt:   time.Date(2023, 9, 15, 0, 0, 0, 0, time.UTC),
		LessonQuota:  4,
		Active:       true,
	},
}

var seedInstructors = []*models.Instructor{
	{
		PersonRecord: models.PersonRecord{DocumentID: "22333444", FirstName: "Diego", LastName: "Leiva", BirthDate: time.Date(1985, 3, 20, 0, 0, 0, 0, time.UTC), Phone: "11-5550-0201"},
		HiredAt:      time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC),
		Active:       true,
	},
	{
		PersonRecord: models.PersonRecord{DocumentID: "24555666", FirstName: "Marta", LastName: "Quiroga", BirthDate: time.Date(1990, 7, 8, 0, 0, 0, 0, time.UTC), Phone: "11-5550-0202"},
		HiredAt:      time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		Active:       true,
	},
}

var seedHorses = []*models.Horse{
	{Name: "Luna", Kind: models.HorseSchool, Available: true},
	{Name: "Tornado", Kind: models.HorseSchool, Available: true},
	{Name: "Malbec", Kind: models.HorsePrivate, Available: true},
}
