package compiler

import (
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/conv"
)

// 召回分支输出的统一 schema
func (u *unit) recallOutput() []string {
	return []string{u.userKey, u.itemKey, "score", "origin_scores"}
}

// itemMatcherActions 把 (user, [(item, weight)], score) 展开为 (user, item, score, origin_scores) 行。
func (u *unit) itemMatcherActions(scoreField string) []*pipeline.FieldAction {
	toItemScore := "toItemScore." + u.userKey
	return []*pipeline.FieldAction{
		{
			Names: []string{toItemScore, "item_score"}, Types: []string{"str", "map_str_double"},
			Fields: []string{u.userKey, "value", scoreField}, Func: "toItemScore",
		},
		{
			Names: u.recallOutput(), Types: []string{"str", "str", "double", "map_str_double"},
			Input: []string{toItemScore, "item_score"}, Func: "recallCollectItem",
		},
	}
}

// registerRecall 为每个召回模型生成一个分支；双塔召回暂不参与编译。
func (u *unit) registerRecall() error {
	for _, m := range u.f.CandidateModels() {
		var err error
		switch model := m.(type) {
		case *flow.RandomModel:
			err = u.randomBranch(model)
		case *flow.CFModel:
			err = u.cfBranch(model)
		case *flow.TwoTowerModel:
			u.g.logger.Debug().Str("model", model.Name).Msg("two-tower recall is not compiled")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// randomBranch 随机召回：按请求生成 [0, bound) 的随机 id，得分固定为 1.0，
// 再按 id 关联预计算表。
func (u *unit) randomBranch(m *flow.RandomModel) error {
	if err := u.addSourceTable(m.Name, m.Source, flow.DefaultRandomColumns()); err != nil {
		return err
	}
	bound := m.Bound
	if bound <= 0 {
		bound = fallbackRandomBound
	}
	err := u.b.Add(&pipeline.Feature{
		Name:   featureRequest,
		From:   []string{tableRequest},
		Select: []string{tableRequest + "." + u.userKey},
	})
	if err != nil {
		return err
	}
	err = u.b.Add(&pipeline.AlgoTransform{
		Name:    transformRandom,
		Feature: []string{featureRequest},
		FieldActions: []*pipeline.FieldAction{
			{
				Names: []string{"hash_id"}, Types: []string{"int"}, Fields: []string{u.userKey},
				Func: "randomGenerator", Options: pipeline.Options("bound", bound),
			},
			{
				Names: []string{"score"}, Types: []string{"double"}, Fields: []string{u.userKey},
				Func: "setValue", Options: pipeline.Options("value", 1.0),
			},
		},
		Output: []string{"hash_id", "score"},
	})
	if err != nil {
		return err
	}
	err = u.b.Add(&pipeline.Feature{
		Name:      featureRandom,
		From:      []string{tableRequest, transformRandom, m.Name},
		Select:    []string{tableRequest + "." + u.userKey, transformRandom + ".score", m.Name + ".value"},
		Condition: []pipeline.Condition{pipeline.On(transformRandom+".hash_id", m.Name+".key")},
	})
	if err != nil {
		return err
	}
	return u.matcher(m.Name, featureRandom, "score")
}

// cfBranch 协同过滤召回：用户画像的 item 关联预计算的 key → [(item, weight)] 表，
// 每个匹配对输出一行，得分为携带的权重。
func (u *unit) cfBranch(m *flow.CFModel) error {
	if err := u.addSourceTable(m.Name, m.Source, flow.DefaultCFColumns()); err != nil {
		return err
	}
	feature := "feature_" + m.Name
	err := u.b.Add(&pipeline.Feature{
		Name:      feature,
		From:      []string{transformUser, m.Name},
		Select:    []string{transformUser + "." + u.userKey, transformUser + ".item_score", m.Name + ".value"},
		Condition: []pipeline.Condition{pipeline.LeftOn(transformUser+"."+u.itemKey, m.Name+".key")},
	})
	if err != nil {
		return err
	}
	return u.matcher(m.Name, feature, "item_score")
}

// matcher 注册召回分支的 ItemMatcher 变换、服务与实验。
func (u *unit) matcher(name, feature, scoreField string) error {
	transform := "algotransform_" + name
	err := u.b.Add(&pipeline.AlgoTransform{
		Name:         transform,
		TaskName:     "ItemMatcher",
		Feature:      []string{feature},
		FieldActions: u.itemMatcherActions(scoreField),
		Output:       u.recallOutput(),
		Options:      pipeline.Options("algo-name", name),
	})
	if err != nil {
		return err
	}
	service, experiment := "recall_"+name, "recall."+name
	if err := u.addBranch(service, experiment, transform, &pipeline.Service{}); err != nil {
		return err
	}
	u.recallServices = append(u.recallServices, service)
	u.recallExperiments = append(u.recallExperiments, experiment)
	return nil
}

// registerRecallMerge 多路召回时生成 recall.multiple：按 (user, item) 去重，
// 得分取最大、origin_scores 合并，再按得分降序截断。
func (u *unit) registerRecallMerge() error {
	if len(u.recallServices) < 2 {
		return nil
	}
	err := u.b.Add(&pipeline.Experiment{
		Name:    recallMultiple,
		Options: u.maxReservation(u.g.experimentReservation),
		Chains: []*pipeline.Chain{{
			When: append([]string(nil), u.recallServices...),
			Transforms: []*pipeline.TransformConfig{
				{
					Name: "summaryBySchema",
					Option: pipeline.Options(
						"dupFields", []any{u.userKey, u.itemKey},
						"mergeOperator", pipeline.Options("score", "maxScore", "origin_scores", "mergeScoreInfo"),
					),
				},
				putOriginScores(),
				{Name: "orderAndLimit", Option: pipeline.Options("orderFields", []any{"score"})},
			},
		}},
	})
	if err != nil {
		return err
	}
	u.recallExperiments = append(u.recallExperiments, recallMultiple)
	return nil
}

// registerRank 为每个排序模型生成分支：完整的 user/item 行关联召回输出，
// 调用外部打分服务，并把得分与继承的 origin_scores 一起写回。
func (u *unit) registerRank() error {
	host, port := u.modelHostPort()
	for _, m := range u.f.RankModels {
		service := "rank_" + m.Name
		feature := "feature_" + m.Name
		transform := "algotransform_" + m.Name

		selects := conv.Prefixed(tableUser+".", u.userFields)
		selects = append(selects, conv.Prefixed(tableItem+".", u.itemFields)...)
		selects = append(selects, service+".origin_scores")
		err := u.b.Add(&pipeline.Feature{
			Name:   feature,
			From:   []string{tableUser, tableItem, service},
			Select: selects,
			Condition: []pipeline.Condition{
				pipeline.On(tableUser+"."+u.userKey, service+"."+u.userKey),
				pipeline.On(tableItem+"."+u.itemKey, service+"."+u.itemKey),
			},
		})
		if err != nil {
			return err
		}

		typed := "typeTransform." + u.itemKey
		columnInfo := m.ColumnInfo
		if len(columnInfo) == 0 {
			columnInfo = flow.DefaultColumnInfo(u.itemKey)
		}
		err = u.b.Add(&pipeline.AlgoTransform{
			Name:     transform,
			TaskName: "AlgoInference",
			Feature:  []string{feature},
			FieldActions: []*pipeline.FieldAction{
				{
					Names: []string{u.userKey, typed}, Types: []string{"str", "str"},
					Fields: []string{u.userKey, u.itemKey}, Func: "typeTransform",
				},
				{
					Names: []string{u.itemKey, "score", "origin_scores"}, Types: []string{"str", "float", "map_str_double"},
					Fields: []string{"origin_scores"}, Input: []string{typed, "rankScore"}, Func: "rankCollectItem",
				},
				{
					Names: []string{"rankScore"}, Types: []string{"float"},
					Input: []string{typed}, Func: "predictScore", AlgoColumns: columnInfo,
					Options: pipeline.Options("modelName", m.Model, "targetKey", "output", "targetIndex", 0),
				},
			},
			Output:  u.recallOutput(),
			Options: pipeline.Options("algo-name", m.Name, "host", host, "port", port),
		})
		if err != nil {
			return err
		}

		rank := &pipeline.Service{
			PreTransforms: []*pipeline.TransformConfig{{Name: "summary"}},
			Columns: []core.Column{
				core.Col(u.userKey, u.userKeyType),
				core.Col(u.itemKey, u.itemKeyType),
				core.Col("score", "double"),
				core.Col("origin_scores", "map_str_double"),
			},
		}
		experiment := "rank." + m.Name
		if err := u.addBranch(service, experiment, transform, rank); err != nil {
			return err
		}
		u.rankExperiments = append(u.rankExperiments, experiment)
	}
	return nil
}

// registerRouting 生成 recall/rank 流量层（各实验均分流量）与 guess-you-like 场景。
// 两个层始终输出；场景只串联非空的层。
func (u *unit) registerRouting() error {
	var chained []string
	for _, layer := range []struct {
		name        string
		experiments []string
	}{
		{layerRecall, u.recallExperiments},
		{layerRank, u.rankExperiments},
	} {
		err := u.b.Add(&pipeline.Layer{
			Name:        layer.name,
			Bucketizer:  bucketizer,
			Experiments: pipeline.EqualSplit(layer.experiments),
		})
		if err != nil {
			return err
		}
		if len(layer.experiments) > 0 {
			chained = append(chained, layer.name)
		}
	}
	scene := &pipeline.Scene{
		Name:    sceneName,
		Columns: []core.Column{core.Col(u.userKey, u.userKeyType), core.Col(u.itemKey, u.itemKeyType)},
	}
	if len(chained) > 0 {
		scene.Chains = []*pipeline.Chain{{Then: chained}}
	}
	return u.b.Add(scene)
}
