package rbac

const (
	QuestionView        = "question:view"
	QuestionInstantiate = "question:instantiate"
	QuestionGrade       = "question:grade"
	QuestionImport      = "question:import"
	QuestionExport      = "question:export"
	AttemptCreate       = "attempt:create"
	AttemptViewOwn      = "attempt:view-own"
	AttemptViewAll      = "attempt:view-all"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"learner": {
		QuestionView,
		QuestionInstantiate,
		QuestionGrade,
		AttemptCreate,
		AttemptViewOwn,
	},
	"author": {
		"question:*",
		AttemptCreate,
		AttemptViewOwn,
		AttemptViewAll,
	},
	"admin": {
		"*",
	},
}
