package plan

const (
	MilestoneCount = 4
	DayCount       = 30
)

type Task struct {
	Title       string `json:"title" validate:"required"`
	Instruction string `json:"instruction" validate:"required"`
}

type WeeklyMilestone struct {
	Week int    `json:"week" validate:"min=1,max=4"`
	Goal string `json:"goal" validate:"required"`
}

type DayPlan struct {
	Day   int    `json:"day" validate:"min=1,max=30"`
	Tasks []Task `json:"tasks" validate:"min=2,max=3,dive"`
}

// LearningPlan field names follow the JSON the model is instructed to produce.
type LearningPlan struct {
	WeeklyMilestones []WeeklyMilestone `json:"weeklyMilestones" validate:"len=4,dive"`
	Days             []DayPlan         `json:"days" validate:"len=30,dive"`
}

type GenerateRequest struct {
	SkillName string `json:"skill_name"`
}

type SkillSuggestion struct {
	SkillName   string `json:"skill_name"`
	Description string `json:"description"`
}
