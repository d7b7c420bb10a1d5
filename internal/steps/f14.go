package steps

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/models"
	"github.com/fincore/txn-enrichment/internal/pipeline"
)

// F14Mapping chooses a canonical internal_type for the row by evaluating
// counterparty-scoped rules in priority order, falling back to UNMATCHED
// when nothing applies (spec §4.7). It reports success for every
// classification outcome — UNMATCHED is not an error; only a failure to
// load the rules from the store fails the step.
type F14Mapping struct{}

func NewF14Mapping() *F14Mapping { return &F14Mapping{} }

func (s *F14Mapping) Name() string { return "f14_mapping" }

func (s *F14Mapping) ShouldExecute(row *models.Context) bool {
	return !row.HasFatalError()
}

func (s *F14Mapping) Run(ctx context.Context, row *models.Context, store dao.Store) pipeline.StepResult {
	cpid, _ := row.Enrichments[models.EnrichCounterpartyID].(string)
	if cpid == "" {
		cpid = models.SentinelUnknown
	}

	rules, err := loadF14Rules(ctx, store, cpid, string(row.SourceType))
	if err != nil {
		row.Fail("failed to load f14 rules: " + err.Error())
		return pipeline.StepResult{Success: false, Message: err.Error()}
	}

	if len(rules) == 0 {
		row.Enrichments[models.EnrichInternalType] = models.SentinelUnmatched
		row.Enrichments[models.EnrichF14RulesEvaluated] = "0"
		emitErr := multierr.Combine(
			AuditLog(ctx, store, row.TransactionID, s.Name(), "NO_F14_RULES", "no f14 rules for counterparty "+cpid, "failure"),
			RaiseException(ctx, store, models.ExceptionRow{
				TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
				ExceptionType: models.ExceptionNoF14Rules, Details: "no f14 rules for counterparty " + cpid,
				Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
				Priority: models.PriorityHigh,
			}),
		)
		row.MarkStep(models.StatusF14NoRules)
		return pipeline.StepResult{Success: true, Message: "no f14 rules loaded", Payload: emitErr}
	}

	for i, rule := range rules {
		if evaluateRule(row, rule) {
			row.Enrichments[models.EnrichInternalType] = rule["internal_type"]
			row.Enrichments[models.EnrichF14RuleID] = rule["id"]
			row.Enrichments[models.EnrichF14RuleName] = rule["rule_name"]
			row.Enrichments[models.EnrichF14RulesEvaluated] = strconv.Itoa(i + 1)

			if err := AuditLog(ctx, store, row.TransactionID, s.Name(), "F14_MAPPED", "matched rule "+rule["id"]+" -> "+rule["internal_type"], "success"); err != nil {
				row.MarkStep(models.StatusF14Mapped)
				return pipeline.StepResult{Success: true, Message: "f14 mapped (audit log failed: " + err.Error() + ")"}
			}
			row.MarkStep(models.StatusF14Mapped)
			return pipeline.StepResult{Success: true, Message: "mapped to " + rule["internal_type"]}
		}
	}

	row.Enrichments[models.EnrichInternalType] = models.SentinelUnmatched
	row.Enrichments[models.EnrichF14RulesEvaluated] = strconv.Itoa(len(rules))
	ruleCtx := noMatchContext(row)
	emitErr := multierr.Combine(
		AuditLog(ctx, store, row.TransactionID, s.Name(), "NO_RULE_MATCH", "no f14 rule matched after evaluating "+strconv.Itoa(len(rules))+" rule(s)", "failure"),
		RaiseException(ctx, store, models.ExceptionRow{
			TransactionID: row.TransactionID, StatementID: row.StatementID, SourceType: row.SourceType,
			ExceptionType: models.ExceptionNoRuleMatch, Details: "no f14 rule matched",
			Amount: row.Amount, Currency: row.Currency, TransactionDate: row.TransactionDate,
			Priority: models.PriorityMedium, Context: ruleCtx,
		}),
	)
	row.MarkStep(models.StatusF14NoMatch)
	return pipeline.StepResult{Success: true, Message: "no f14 rule matched", Payload: emitErr}
}

// noMatchContext gathers the source-type-specific fields spec §4.7
// requires on a NO_RULE_MATCH exception.
func noMatchContext(row *models.Context) map[string]string {
	if row.SourceType == models.SourceBank {
		return map[string]string{
			"description":     row.PaymentDesc,
			"d_c":             row.DebitCredit,
			"other_side_name": row.OtherSideName,
		}
	}
	return map[string]string{
		"type":        row.SecuType,
		"ticker":      row.Ticker,
		"description": row.Description,
	}
}

// loadF14Rules loads active rules for cpid or the SYSTEM fallback,
// drops rules not yet effective, and orders them tenant-specific first,
// then ascending priority (spec §4.7).
func loadF14Rules(ctx context.Context, store dao.Store, cpid, sourceType string) ([]dao.Row, error) {
	rows, err := store.Find(ctx, models.TableCPTxnMapping,
		"status = ? AND source_type = ? AND counterparty_id IN (?, ?)",
		[]interface{}{models.StatusActive, sourceType, cpid, models.SentinelSystem}, "", false, 0, 0)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC()
	var rules []dao.Row
	for _, r := range rows {
		if r["effective_date"] != "" {
			effective, err := time.Parse("2006-01-02", r["effective_date"])
			if err == nil && effective.After(today) {
				continue
			}
		}
		rules = append(rules, r)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		iTenant := rules[i]["counterparty_id"] == cpid
		jTenant := rules[j]["counterparty_id"] == cpid
		if iTenant != jTenant {
			return iTenant
		}
		return rulePriority(rules[i]) < rulePriority(rules[j])
	})
	return rules, nil
}

func rulePriority(rule dao.Row) int {
	p, err := strconv.Atoi(rule["priority"])
	if err != nil {
		return 999
	}
	return p
}

// evaluateRule applies a single cp_txn_mapping row's matching logic
// against row (spec §4.7).
func evaluateRule(row *models.Context, rule dao.Row) bool {
	if rule["matching_field"] == "combined" {
		return evaluateCombined(row, rule["complex_rule_expression"])
	}

	fieldValue := row.Field(rule["matching_field"])
	matchValue := rule["match_value"]
	if rule["case_sensitive"] != "true" {
		fieldValue = strings.ToUpper(fieldValue)
		matchValue = strings.ToUpper(matchValue)
	}

	if !applyOperator(fieldValue, rule["match_operator"], matchValue) {
		return false
	}

	if cond := rule["arithmetic_condition"]; cond != "" {
		return evaluateArithmetic(row.Amount, cond)
	}
	return true
}

// applyOperator implements the matchOperator vocabulary in spec §4.7.
func applyOperator(fieldValue, operator, matchValue string) bool {
	switch operator {
	case "equals":
		return fieldValue == matchValue
	case "contains":
		return strings.Contains(fieldValue, matchValue)
	case "startsWith", "starts_with":
		return strings.HasPrefix(fieldValue, matchValue)
	case "endsWith", "ends_with":
		return strings.HasSuffix(fieldValue, matchValue)
	case "regex":
		re, err := regexp.Compile(matchValue)
		if err != nil {
			return false
		}
		return re.MatchString(fieldValue)
	case "in":
		for _, v := range strings.Split(matchValue, ",") {
			if strings.TrimSpace(v) == fieldValue {
				return true
			}
		}
		return false
	default:
		return false
	}
}

var arithmeticConditionPattern = regexp.MustCompile(`^\s*(>=|<=|>|<)\s*(-?[0-9]+(\.[0-9]+)?)\s*$`)

// evaluateArithmetic applies an arithmeticCondition like ">= 1000" against
// the row's amount.
func evaluateArithmetic(rawAmount, condition string) bool {
	m := arithmeticConditionPattern.FindStringSubmatch(condition)
	if m == nil {
		return false
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return false
	}
	threshold, err := ParseAmount(m[2])
	if err != nil {
		return false
	}
	switch m[1] {
	case ">":
		return amount.GreaterThan(threshold)
	case "<":
		return amount.LessThan(threshold)
	case ">=":
		return amount.GreaterThanOrEqual(threshold)
	case "<=":
		return amount.LessThanOrEqual(threshold)
	}
	return false
}

var combinedClausePattern = regexp.MustCompile(`(?i)^\s*(\S+)\s+(=|CONTAINS)\s+'([^']*)'\s*$`)

// evaluateCombined parses the restricted "combined" grammar of spec
// §4.7: a chain of "<field> = '<lit>'" / "<field> CONTAINS '<lit>'"
// clauses joined uniformly by " AND " or " OR " (never mixed at one
// level — spec §9 open question 4).
func evaluateCombined(row *models.Context, expression string) bool {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false
	}

	isOr := strings.Contains(expression, " OR ") || strings.Contains(expression, " or ")
	var parts []string
	if isOr {
		parts = splitKeepingCase(expression, " OR ")
	} else {
		parts = splitKeepingCase(expression, " AND ")
	}

	for _, part := range parts {
		m := combinedClausePattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return false
		}
		field, op, literal := m[1], strings.ToUpper(m[2]), m[3]
		fieldValue := strings.ToUpper(row.Field(field))
		literal = strings.ToUpper(literal)

		var clauseMatch bool
		if op == "=" {
			clauseMatch = fieldValue == literal
		} else {
			clauseMatch = strings.Contains(fieldValue, literal)
		}

		if isOr && clauseMatch {
			return true
		}
		if !isOr && !clauseMatch {
			return false
		}
	}
	return !isOr
}

// splitKeepingCase splits on sep case-insensitively without lower-casing
// the parts themselves (the literal inside a clause must stay intact).
func splitKeepingCase(s, sep string) []string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sep))
	return re.Split(s, -1)
}
