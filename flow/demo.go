package flow

import (
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// DemoJPAFlow 返回 Amazon Fashion 数据集的演示 flow：
// 单个 mongo 服务，swing 协同过滤 + pop 随机召回 + widedeep 排序。
func DemoJPAFlow() *OnlineFlow {
	services := omap.New[*ServiceInfo]()
	services.Set("mongo", &ServiceInfo{
		Image:      "mongo:6.0.1",
		Collection: []string{"jpa"},
		Environment: omap.New[string]().
			Set("MONGO_INITDB_ROOT_USERNAME", "jpa").
			Set("MONGO_INITDB_ROOT_PASSWORD", "Dmetasoul_123456"),
	})
	return &OnlineFlow{
		Source: &FeatureInfo{
			User: &DataSource{
				Table: "amazonfashion_user_feature", ServiceName: "mongo", Collection: "jpa",
				Columns: core.Columns{core.Col("user_id", "str"), core.Col("user_bhv_item_seq", "str")},
			},
			Item: &DataSource{
				Table: "amazonfashion_item_feature", ServiceName: "mongo", Collection: "jpa",
				Columns: core.Columns{core.Col("item_id", "str"), core.Col("brand", "str"), core.Col("category", "str")},
			},
			Summary: &DataSource{
				Table: "amazonfashion_item_summary", ServiceName: "mongo", Collection: "jpa",
				Columns: core.Columns{
					core.Col("item_id", "str"), core.Col("brand", "str"), core.Col("category", "str"),
					core.Col("title", "str"), core.Col("description", "str"), core.Col("image", "str"),
					core.Col("url", "str"), core.Col("price", "str"),
				},
			},
		},
		RandomModel: &RandomModel{
			Name:   "pop",
			Source: &DataSource{Table: "amazonfashion_pop", ServiceName: "mongo", Collection: "jpa"},
		},
		CFModels: []*CFModel{
			{Name: "swing", Source: &DataSource{Table: "amazonfashion_swing", ServiceName: "mongo", Collection: "jpa"}},
		},
		RankModels: []*RankModel{
			{Name: "widedeep", Model: "movie_lens_wdl_test"},
		},
		Services: services,
	}
}

// DemoMovielensFlow 返回 MovieLens 演示 flow：itemcf + swing 两路召回，widedeep 排序。
func DemoMovielensFlow() *OnlineFlow {
	services := omap.New[*ServiceInfo]()
	services.Set("mongo", &ServiceInfo{
		Image:      "mongo:6.0.1",
		Collection: []string{"movielens"},
		Environment: omap.New[string]().
			Set("MONGO_INITDB_ROOT_USERNAME", "root").
			Set("MONGO_INITDB_ROOT_PASSWORD", "example"),
	})
	cf := func(name string) *CFModel {
		return &CFModel{Name: name, Source: &DataSource{
			Table: name, ServiceName: "mongo", Collection: "movielens", Columns: DefaultCFColumns(),
		}}
	}
	return &OnlineFlow{
		Source: &FeatureInfo{
			User: &DataSource{
				Table: "user", ServiceName: "mongo", Collection: "movielens",
				Columns: core.Columns{
					core.Col("user_id", "str"), core.Col("gender", "str"), core.Col("age", "int"),
					core.Col("occupation", "str"), core.Col("zip", "str"), core.Col("recent_movie_ids", "str"),
					core.Col("last_movie", "str"), core.Col("last_genre", "str"),
					core.Col("user_greater_than_three_rate", "decimal"), core.Col("user_movie_avg_rating", "double"),
				},
			},
			Item: &DataSource{
				Table: "item", ServiceName: "mongo", Collection: "movielens",
				Columns: core.Columns{
					core.Col("movie_id", "str"), core.Col("genre", "str"), core.Col("title", "str"),
					core.Col("imdb_url", "str"), core.Col("queryid", "str"),
				},
			},
			Summary: &DataSource{
				Table: "item_feature", ServiceName: "mongo", Collection: "movielens",
				Columns: core.Columns{
					core.Col("movie_id", "str"), core.Col("watch_volume", "double"), core.Col("genre", "str"),
					core.Col("movie_avg_rating", "double"), core.Col("movie_greater_than_three_rate", "decimal"),
					core.Col("genre_watch_volume", "double"), core.Col("genre_movie_avg_rating", "double"),
					core.Col("genre_greater_than_three_rate", "decimal"),
				},
			},
			Request:          core.Columns{core.Col("user_id", "str"), core.Col("movie_id", "str")},
			UserKeyName:      "user_id",
			ItemKeyName:      "movie_id",
			UserItemIDsName:  "recent_movie_ids",
			UserItemIDsSplit: "\u0001",
		},
		CFModels: []*CFModel{cf("itemcf"), cf("swing")},
		RankModels: []*RankModel{
			{Name: "widedeep", Model: "movie_lens_wdl_test", ColumnInfo: DefaultColumnInfo("movie_id")},
		},
		Services: services,
	}
}
