package dto

type CalorieGoalResponse struct {
	Intake float64 `json:"intake"`
	Burn   float64 `json:"burn"`
}

type PlanItemResponse struct {
	Position int     `json:"position"`
	Type     string  `json:"type"`
	Content  string  `json:"content"`
	Calories float64 `json:"calories"`
}

// PlanResponse is one day's plan. State is empty, fetching or populated; CalorieGoal is
// null unless the plan is populated.
type PlanResponse struct {
	Email       string               `json:"email"`
	Date        string               `json:"date"`
	State       string               `json:"state"`
	Generated   bool                 `json:"generated"`
	CalorieGoal *CalorieGoalResponse `json:"calorie_goal"`
	FitnessPlan []PlanItemResponse   `json:"fitness_plan"`
	DietPlan    []PlanItemResponse   `json:"diet_plan"`
}
